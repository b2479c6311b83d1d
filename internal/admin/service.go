package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-gateway/internal/session"
	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/images"
	"github.com/angelmondragon/storefront-gateway/pkg/logger"
	"github.com/angelmondragon/storefront-gateway/pkg/pagination"
	"github.com/angelmondragon/storefront-gateway/pkg/servlet"
	"github.com/angelmondragon/storefront-gateway/pkg/statestore"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
)

// ServiceParams groups dependencies for the admin console.
type ServiceParams struct {
	Servlet        *servlet.Client
	Store          *statestore.Store
	Images         images.Resolver
	Tables         []TableSpec
	MaxUploadBytes int64
	Logger         *logger.Logger
}

// Service drives every admin table through the same list, create, update, delete and row action calls.
type Service interface {
	Tables() []TableSpec
	List(ctx context.Context, sessionID, resource string, paging pagination.Params) (Page, error)
	Create(ctx context.Context, sessionID, resource string, in Input) (Outcome, error)
	Update(ctx context.Context, sessionID, resource, id string, in Input) (Outcome, error)
	Delete(ctx context.Context, sessionID, resource, id string) (Outcome, error)
	Act(ctx context.Context, sessionID, resource, id, action string, in Input) (Outcome, error)
}

// Row is one record projected onto a table's columns.
type Row struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

// Page is one window of a table's current rows.
type Page struct {
	Table      TableSpec `json:"table"`
	Rows       []Row     `json:"rows"`
	Total      int       `json:"total"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// Outcome is the result of a mutation and the table as reloaded afterwards.
type Outcome struct {
	Message string `json:"message"`
	Page    Page   `json:"page"`
}

type service struct {
	servlet   *servlet.Client
	store     *statestore.Store
	images    images.Resolver
	tables    map[string]TableSpec
	order     []TableSpec
	maxUpload int64
	logg      *logger.Logger
}

// NewService builds the admin console over the given tables, or DefaultTables when none are passed.
func NewService(params ServiceParams) (Service, error) {
	if params.Servlet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "servlet client is required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "state store is required")
	}
	specs := params.Tables
	if len(specs) == 0 {
		specs = DefaultTables()
	}
	tables := make(map[string]TableSpec, len(specs))
	for _, t := range specs {
		if t.Resource == "" || t.Endpoint == "" || t.List.Action == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("table %q is incomplete", t.Resource))
		}
		if _, dup := tables[t.Resource]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("table %q declared twice", t.Resource))
		}
		tables[t.Resource] = t
	}
	maxUpload := params.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		servlet:   params.Servlet,
		store:     params.Store,
		images:    params.Images,
		tables:    tables,
		order:     specs,
		maxUpload: maxUpload,
		logg:      logg,
	}, nil
}

func (s *service) Tables() []TableSpec {
	return append([]TableSpec(nil), s.order...)
}

func (s *service) List(ctx context.Context, sessionID, resource string, paging pagination.Params) (Page, error) {
	sess, table, err := s.open(ctx, sessionID, resource)
	if err != nil {
		return Page{}, err
	}
	if _, err := pagination.ParseCursor(paging.Cursor); err != nil {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	return s.page(ctx, sess, table, paging)
}

func (s *service) Create(ctx context.Context, sessionID, resource string, in Input) (Outcome, error) {
	sess, table, err := s.open(ctx, sessionID, resource)
	if err != nil {
		return Outcome{}, err
	}
	if table.Create == "" {
		return Outcome{}, unsupported(table, "create")
	}
	form, files, err := encode(table.Fields, in, s.maxUpload)
	if err != nil {
		return Outcome{}, err
	}
	return s.mutate(ctx, sess, table, table.Create, form, files, "created")
}

func (s *service) Update(ctx context.Context, sessionID, resource, id string, in Input) (Outcome, error) {
	sess, table, err := s.open(ctx, sessionID, resource)
	if err != nil {
		return Outcome{}, err
	}
	if table.Update == "" {
		return Outcome{}, unsupported(table, "update")
	}
	id, err = requireID(id)
	if err != nil {
		return Outcome{}, err
	}
	form, files, err := encode(table.Fields, in, s.maxUpload)
	if err != nil {
		return Outcome{}, err
	}
	form.Set(table.IDParam, id)
	return s.mutate(ctx, sess, table, table.Update, form, files, "saved")
}

func (s *service) Delete(ctx context.Context, sessionID, resource, id string) (Outcome, error) {
	sess, table, err := s.open(ctx, sessionID, resource)
	if err != nil {
		return Outcome{}, err
	}
	if table.Delete == "" {
		return Outcome{}, unsupported(table, "delete")
	}
	id, err = requireID(id)
	if err != nil {
		return Outcome{}, err
	}
	form := url.Values{table.IDParam: {id}}
	return s.mutate(ctx, sess, table, table.Delete, form, nil, "deleted")
}

func (s *service) Act(ctx context.Context, sessionID, resource, id, action string, in Input) (Outcome, error) {
	sess, table, err := s.open(ctx, sessionID, resource)
	if err != nil {
		return Outcome{}, err
	}
	spec, ok := table.action(action)
	if !ok {
		return Outcome{}, unsupported(table, action)
	}
	id, err = requireID(id)
	if err != nil {
		return Outcome{}, err
	}
	form, _, err := encode(spec.Fields, in, s.maxUpload)
	if err != nil {
		return Outcome{}, err
	}
	form.Set(table.IDParam, id)
	return s.mutate(ctx, sess, table, spec.Name, form, nil, "done")
}

func (s *service) open(ctx context.Context, sessionID, resource string) (*statestore.Session, TableSpec, error) {
	sess := s.store.Session(sessionID)
	if _, err := session.RequireAdmin(ctx, sess); err != nil {
		return nil, TableSpec{}, err
	}
	table, ok := s.tables[resource]
	if !ok {
		return nil, TableSpec{}, pkgerrors.New(pkgerrors.CodeNotFound, "unknown admin table").WithDetails(map[string]any{"resource": resource})
	}
	return sess, table, nil
}

// ack is the {status}|{error} reply AdminServlet sends for mutations.
type ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (a ack) ok() bool {
	return types.StatusResponse{Status: a.Status}.OK()
}

func (s *service) mutate(ctx context.Context, sess *statestore.Session, table TableSpec, action string, form url.Values, files []servlet.File, done string) (Outcome, error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{"resource": table.Resource, "action": action})
	var reply ack
	var err error
	if table.Multipart && (action == table.Create || action == table.Update) {
		err = s.servlet.PostMultipart(ctx, sess.ID(), table.Endpoint, action, form, files, &reply)
	} else {
		err = s.servlet.PostForm(ctx, sess.ID(), table.Endpoint, action, form, &reply)
	}
	if err != nil {
		s.logg.Warn(logCtx, "admin.mutation_failed")
		return Outcome{}, err
	}
	if !reply.ok() {
		msg := strings.TrimSpace(reply.Error)
		if msg == "" {
			msg = strings.TrimSpace(reply.Message)
		}
		if msg == "" {
			msg = action + " failed"
		}
		s.logg.Warn(s.logg.WithField(logCtx, "reason", msg), "admin.mutation_rejected")
		return Outcome{}, pkgerrors.New(pkgerrors.CodeConflict, msg)
	}
	s.logg.Info(logCtx, "admin.mutation_applied")

	page, err := s.page(ctx, sess, table, pagination.Params{})
	if err != nil {
		// the write went through; report it and let the console reload later
		s.logg.Warn(logCtx, "admin.reload_failed")
		return Outcome{Message: done, Page: Page{Table: table, Rows: []Row{}}}, nil
	}
	return Outcome{Message: done, Page: page}, nil
}

// page fetches the whole table from the servlet, which has no paging of its own, and windows it.
func (s *service) page(ctx context.Context, sess *statestore.Session, table TableSpec, paging pagination.Params) (Page, error) {
	var raw json.RawMessage
	var err error
	if table.List.Method == http.MethodGet {
		err = s.servlet.Get(ctx, sess.ID(), table.Endpoint, url.Values{"action": {table.List.Action}}, &raw)
	} else {
		err = s.servlet.PostForm(ctx, sess.ID(), table.Endpoint, table.List.Action, nil, &raw)
	}
	if err != nil {
		return Page{}, err
	}
	records, err := decodeRecords(raw)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, pkgerrors.DependencyMessage)
	}
	start, end, next, err := pagination.Window(len(records), paging)
	if err != nil {
		return Page{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}
	rows := make([]Row, 0, end-start)
	for _, rec := range records[start:end] {
		rows = append(rows, s.project(table, rec))
	}
	return Page{Table: table, Rows: rows, Total: len(records), NextCursor: next}, nil
}

// decodeRecords accepts a bare array or an object wrapping one under a common key.
func decodeRecords(raw json.RawMessage) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	dec := func(b []byte) ([]map[string]any, error) {
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		var out []map[string]any
		return out, d.Decode(&out)
	}
	if trimmed[0] == '[' {
		return dec(trimmed)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	for _, key := range []string{"data", "items", "rows", "requests", "results"} {
		if inner, ok := wrapper[key]; ok {
			return dec(inner)
		}
	}
	return nil, fmt.Errorf("unexpected list shape")
}

func (s *service) project(table TableSpec, rec map[string]any) Row {
	row := Row{ID: firstString(rec, table.IDKeys), Values: make(map[string]any, len(table.Columns))}
	for _, col := range table.Columns {
		if col.Key == table.ImageColumn {
			row.Values[col.Key] = s.imageURL(rec, col.Aliases, row.ID)
			continue
		}
		for _, key := range col.Aliases {
			if v, ok := rec[key]; ok && v != nil {
				row.Values[col.Key] = v
				break
			}
		}
	}
	return row
}

// imageURL resolves string references. Raw byte arrays fall back to the servlet's per-product image.
func (s *service) imageURL(rec map[string]any, keys []string, productID string) string {
	for _, key := range keys {
		if v, ok := rec[key].(string); ok && strings.TrimSpace(v) != "" {
			return s.images.URL(images.Parse(v), productID)
		}
	}
	return s.images.URL(images.Ref{Kind: images.KindNone}, productID)
}

func firstString(rec map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "row id is required")
	}
	return id, nil
}

func unsupported(table TableSpec, op string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s does not support %s", table.Resource, op))
}
