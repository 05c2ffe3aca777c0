package handler

// RESPONSE ENVELOPE:
// Every endpoint answers with the same outer shape.
//
//	{"success": true, ...fields}
//	{"success": false, "error_code": n, "error_message": "..."}
//
// error_code 0 is always "general failure", 1 is "no user logged in" and 2
// is "corrupt input". Codes from 3 up mean something different per endpoint
// and are listed on each handler.
//
// The HTTP status follows the error kind as well, so clients that only look
// at the status still behave.

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sakif/piecemeal/internal/apperror"
)

const (
	CodeGeneral       = 0
	CodeNoCurrentUser = 1
	CodeCorruptInput  = 2
)

// maxBodyBytes caps a JSON request body.
const maxBodyBytes = 1 << 20

// fields are the extra keys of a success envelope.
type fields map[string]any

type errorBody struct {
	Success      bool   `json:"success"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are gone by now; logging is all that is left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeOK sends {"success":true} merged with f.
func writeOK(w http.ResponseWriter, f fields) {
	body := make(map[string]any, len(f)+1)
	for k, v := range f {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

func writeFail(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, errorBody{ErrorCode: code, ErrorMessage: message})
}

// errorCode maps one endpoint-specific failure to its code. The first rule
// whose match returns true wins.
type errorCode struct {
	match   func(error) bool
	status  int
	code    int
	message string
}

func isResource(kind error, resource string) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, kind) && apperror.ResourceOf(err) == resource
	}
}

func isKind(kind error) func(error) bool {
	return func(err error) bool { return errors.Is(err, kind) }
}

// writeError resolves err against the endpoint's rules first and the common
// codes second. Anything unrecognised is logged and reported as code 0
// without its text.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, rules ...errorCode) {
	for _, rule := range rules {
		if rule.match(err) {
			msg := rule.message
			if msg == "" {
				msg = messageOf(err)
			}
			writeFail(w, rule.status, rule.code, msg)
			return
		}
	}

	switch {
	case errors.Is(err, apperror.ErrNoCurrentUser):
		writeFail(w, http.StatusUnauthorized, CodeNoCurrentUser, "no user logged in")
	case errors.Is(err, apperror.ErrValidation):
		writeFail(w, http.StatusBadRequest, CodeCorruptInput, messageOf(err))
	case errors.Is(err, apperror.ErrNotFound):
		writeFail(w, http.StatusNotFound, CodeGeneral, messageOf(err))
	case errors.Is(err, apperror.ErrConflict):
		writeFail(w, http.StatusConflict, CodeGeneral, messageOf(err))
	case errors.Is(err, apperror.ErrForbidden):
		writeFail(w, http.StatusForbidden, CodeGeneral, messageOf(err))
	case errors.Is(err, apperror.ErrExternalProvider):
		logger.Warn("provider failure", slog.String("error", err.Error()))
		writeFail(w, http.StatusBadGateway, CodeGeneral, "recipe provider unavailable")
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeFail(w, http.StatusInternalServerError, CodeGeneral, "unknown error")
	}
}

func messageOf(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched
// so endpoints whose fields are all optional accept it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.InvalidArgument("body", "corrupt input arguments")
	}
	return nil
}

// queryInt reads an integer query parameter, def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.InvalidArgument(name, "expected an integer "+name)
	}
	return n, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, apperror.InvalidArgument(name, "missing "+name)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.InvalidArgument(name, "expected an integer "+name)
	}
	return n, nil
}

// queryList splits a comma-separated parameter, dropping blanks.
func queryList(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func queryInts(r *http.Request, name string) ([]int, error) {
	parts := queryList(r, name)
	if parts == nil {
		return nil, nil
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, apperror.InvalidArgument(name, "expected integers in "+name)
		}
		out[i] = n
	}
	return out, nil
}

// page reads offset and limit. A zero limit means "all".
func page(r *http.Request, defLimit int) (offset, limit int, err error) {
	if offset, err = queryInt(r, "offset", 0); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit", defLimit); err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}
