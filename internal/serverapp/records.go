package serverapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"virtualassoc/internal/assoc"
	"virtualassoc/internal/catalog"
	"virtualassoc/internal/logging"
	"virtualassoc/internal/relation"
	"virtualassoc/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

const wherePrefix = "where."

type recordsResponse struct {
	Data []map[string]any `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// badRequest reports a malformed query parameter.
type badRequest struct {
	msg string
}

func (e badRequest) Error() string { return e.msg }

// recordsHandler serves GET /records/{type}. Query parameters:
//
//	include=a,b        associations to resolve in one batch each
//	where.<attr>=<v>   equality filter; repeat the parameter for IN
//	order_by=a,-b      sort terms, "-" for descending
//	limit=<n>          row limit, capped at maxLimit
func recordsHandler(cat *catalog.Catalog, defaultLimit, maxLimit int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		typeName := r.PathValue("type")

		rel, ok := cat.Relation(typeName)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown record type %q", typeName)})
			return
		}

		rel, err := applyQuery(rel, cat.Registry(), r.URL.Query(), defaultLimit, maxLimit)
		if err != nil {
			status, body := errorStatus(err)
			writeJSON(w, status, body)
			return
		}

		records, err := rel.Records(r.Context())
		if err != nil {
			status, body := errorStatus(err)
			level := slog.LevelWarn
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			reqLogger.Log(r.Context(), level, "records request failed",
				slog.String("type", typeName),
				slog.Any("include", rel.IncludeValues()),
				slog.String("error", err.Error()),
			)
			writeJSON(w, status, body)
			return
		}

		resp := recordsResponse{Data: make([]map[string]any, 0, len(records))}
		for _, rec := range records {
			resp.Data = append(resp.Data, recordValues(rec))
		}
		reqLogger.Debug("records served",
			slog.String("type", typeName),
			slog.Int("count", len(records)),
			slog.Any("include", rel.IncludeValues()),
		)
		writeJSON(w, http.StatusOK, resp)
	})
}

func applyQuery(rel *relation.Relation, registry *assoc.Registry, query url.Values, defaultLimit, maxLimit int) (*relation.Relation, error) {
	typ := rel.Type()

	var filterAttrs []string
	for key := range query {
		if strings.HasPrefix(key, wherePrefix) {
			filterAttrs = append(filterAttrs, strings.TrimPrefix(key, wherePrefix))
		}
	}
	sort.Strings(filterAttrs)
	for _, attr := range filterAttrs {
		if !typ.HasAttribute(attr) {
			return nil, badRequest{msg: fmt.Sprintf("cannot filter %s by unknown attribute %q", typ.Name(), attr)}
		}
		values := query[wherePrefix+attr]
		column := sqlutil.QuoteIdentifier(attr)
		if len(values) == 1 {
			rel = rel.Where(sq.Eq{column: values[0]})
		} else {
			rel = rel.Where(sq.Eq{column: values})
		}
	}

	if raw := query.Get("order_by"); raw != "" {
		terms := splitList(raw)
		for _, term := range terms {
			if !typ.HasAttribute(strings.TrimPrefix(term, "-")) {
				return nil, badRequest{msg: fmt.Sprintf("cannot order %s by unknown attribute %q", typ.Name(), term)}
			}
		}
		rel = rel.OrderBy(terms...)
	}

	limit, err := parseLimit(query.Get("limit"), defaultLimit, maxLimit)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		rel = rel.Limit(uint64(limit))
	}

	if _, present := query["include"]; present {
		names := splitList(query.Get("include"))
		for _, name := range names {
			if _, ok := registry.Lookup(typ, name); !ok {
				return nil, badRequest{msg: fmt.Sprintf("%s has no association %q", typ.Name(), name)}
			}
		}
		// An empty include list is rejected by Includes as an argument error.
		rel, err = rel.Includes(names...)
		if err != nil {
			return nil, err
		}
	}
	return rel, nil
}

func parseLimit(raw string, defaultLimit, maxLimit int) (int, error) {
	limit := defaultLimit
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, badRequest{msg: fmt.Sprintf("invalid limit %q", raw)}
		}
		limit = n
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func recordValues(rec assoc.Record) map[string]any {
	if row, ok := rec.(*assoc.Row); ok {
		return row.Values()
	}
	return map[string]any{}
}

// errorStatus maps an error to an HTTP status and a response body.
func errorStatus(err error) (int, errorResponse) {
	var br badRequest
	if errors.As(err, &br) {
		return http.StatusBadRequest, errorResponse{Error: br.msg}
	}

	kind, ok := assoc.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
	body := errorResponse{Error: err.Error(), Kind: kind.String()}
	switch kind {
	case assoc.KindArgument:
		return http.StatusBadRequest, body
	case assoc.KindNotFound:
		return http.StatusFailedDependency, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
