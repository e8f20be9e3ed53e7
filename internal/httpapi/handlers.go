package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ManishG04/Convex/internal/session"
)

const (
	serviceName    = "Convex Backend"
	serviceVersion = "1.0.0"
)

// GenerateCode mints a six-character room code from the uppercase charset
// client codes are normalized to.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// CreateRoom hands out a code no live room is using. It creates no state:
// a room only starts existing when its first participant joins over the
// socket.
func CreateRoom(coord *session.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for attempt := 0; attempt < 10; attempt++ {
			code, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}

			reply := make(chan session.RoomView, 1)
			coord.Inbox() <- session.ViewRoom{Code: code, Reply: reply}
			select {
			case v := <-reply:
				if v.Exists {
					continue // collision, regenerate
				}
			case <-coord.Done():
				// A coordinator that stopped mid-request drains the query
				// without answering.
				http.Error(w, "shutting down", http.StatusServiceUnavailable)
				return
			}

			writeJSON(w, http.StatusCreated, struct {
				Code string `json:"code"`
			}{Code: code})
			return
		}
		http.Error(w, "failed to generate code", http.StatusInternalServerError)
	}
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "convex-backend",
	})
}

// Root identifies the service.
func Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    serviceName,
		"version": serviceVersion,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
