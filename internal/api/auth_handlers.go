package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/clinic-booking/internal/auth"
	"github.com/clinicbook/clinic-booking/internal/booking"
)

// issueTokenHandler signs a bearer token for a seeded actor. Only mounted in
// dev; there is no credential store behind it, so it must never reach a real
// deployment.
func issueTokenHandler(secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		id, err := uuid.Parse(req.ActorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_actor_id", "actor_id must be a valid UUID")
			return
		}

		role := booking.Role(req.Role)
		switch role {
		case booking.RolePatient, booking.RoleSecretary, booking.RoleAdmin:
		default:
			writeError(w, http.StatusBadRequest, "invalid_role", "role must be patient, secretary or admin")
			return
		}

		token, err := auth.IssueToken(secret, booking.Actor{ID: id, Role: role}, ttl)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "could not sign token")
			return
		}

		writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresIn: int(ttl.Seconds())})
	}
}
