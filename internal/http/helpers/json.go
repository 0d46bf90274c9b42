package helpers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/dropDatabas3/recargas/internal/http/errors"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// DecodeJSON lee el body como JSON en dst, con tope de tamaño y
// rechazando campos desconocidos silenciosamente permitidos.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperrors.ErrInvalidJSON.WithCause(err)
	}
	return nil
}

// WriteJSON serializa v con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
