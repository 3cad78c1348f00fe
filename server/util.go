package server

import (
	"encoding/json"
	"net/http"
)

func createResponse(success bool, data interface{}, errorMsg string) ResponseModel {
	return ResponseModel{
		Success: success,
		Data:    data,
		Error:   errorMsg,
	}
}

// SendResponse writes a 200 JSON envelope.
func SendResponse(w http.ResponseWriter, success bool, data interface{}, errorMsg string) {
	SendResponseWithHeader(w, success, data, errorMsg, http.StatusOK, nil)
}

// SendResponseWithHeader writes a JSON envelope with extra headers. Failed
// responses default to 400 when statusCode is 0.
func SendResponseWithHeader(w http.ResponseWriter, success bool, data interface{}, errorMsg string, statusCode int, payloadHeaders map[string]string) {
	response := createResponse(success, data, errorMsg)
	w.Header().Set("Content-Type", "application/json")
	for key, value := range payloadHeaders {
		w.Header().Set(key, value)
	}

	switch {
	case success:
		w.WriteHeader(http.StatusOK)
	case statusCode != 0:
		w.WriteHeader(statusCode)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"success":false,"error":"Internal Server Error"}`, http.StatusInternalServerError)
	}
}
