package httpx

import (
	"errors"
	"net/http"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/schoolcrm/enrichment/internal/domain/job"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// DetermineErrorStatus maps an error to an HTTP status code. Request errors
// map to 4xx; everything else is a 500.
func DetermineErrorStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, job.ErrUnknownWorkerGroup),
		errors.Is(err, model.ErrInvalidJobType):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrJobDuplicate):
		return http.StatusConflict
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ForeignKeyViolation, pgerrcode.UniqueViolation:
			return http.StatusConflict
		case pgerrcode.InvalidTextRepresentation:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

// errorCode is the machine-readable code sent next to the message.
func errorCode(status int, fallback string) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	}
	return fallback
}

// RenderError writes err as a JSON error with the status DetermineErrorStatus picks.
func RenderError(w http.ResponseWriter, err error, fallbackCode string) {
	status := DetermineErrorStatus(err)
	WriteError(w, ErrorParams{Code: status, ErrCode: errorCode(status, fallbackCode), Err: err})
}
