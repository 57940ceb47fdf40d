package httpapi

import "realty-engine/internal/store"

type PropertiesResponse struct {
	Total      int                    `json:"total"`
	Properties []store.StoredProperty `json:"properties"`
}

type RunStarted struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}
