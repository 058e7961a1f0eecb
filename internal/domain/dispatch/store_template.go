package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	html "html/template"
	"strings"
	"sync"

	"notico/internal/common"
	"notico/internal/render"
)

// StoreTemplateManagerConfig declares everything a blob-store-backed
// template manager needs. Required fields are validated at construction
// so a misconfigured service fails at startup, not at first use.
type StoreTemplateManagerConfig struct {
	// ServiceName is the unique logical service name.
	ServiceName string

	// Prefix is the store key prefix, e.g. "email/template/".
	Prefix string

	// Extension is the blob extension without the dot, e.g. "json".
	Extension string

	// WrapperKey is the store key of the HTML wrapper template.
	// Defaults to Prefix + "wrapper.html".
	WrapperKey string

	// DelimiterStart and DelimiterEnd configure the variable reference
	// syntax. Default "{{" and "}}".
	DelimiterStart string
	DelimiterEnd   string

	// ValidateTemplate checks a template body against the service's
	// structural schema before create/update.
	ValidateTemplate func(body any) error

	// Initialized reports whether the service's external configuration
	// is present.
	Initialized bool
}

// StoreTemplateManager implements TemplateManager on top of a
// TemplateStore. Retrieve memoizes within the process lifetime; every
// mutating operation invalidates the memoized entry, so staleness only
// occurs on store-external mutations, which callers needing freshness must
// handle by bypassing this manager.
type StoreTemplateManager struct {
	store TemplateStore
	cfg   StoreTemplateManagerConfig
	cache sync.Map // code -> *TemplateInfo
}

var _ TemplateManager = (*StoreTemplateManager)(nil)

// NewStoreTemplateManager validates cfg and builds the manager.
func NewStoreTemplateManager(store TemplateStore, cfg StoreTemplateManagerConfig) (*StoreTemplateManager, error) {
	if store == nil {
		return nil, fmt.Errorf("template manager %q: store is required", cfg.ServiceName)
	}
	if cfg.ServiceName == "" || cfg.Prefix == "" || cfg.Extension == "" {
		return nil, fmt.Errorf("template manager: service name, prefix and extension are required")
	}
	if cfg.ValidateTemplate == nil {
		return nil, fmt.Errorf("template manager %q: template schema validator is required", cfg.ServiceName)
	}
	if cfg.DelimiterStart == "" {
		cfg.DelimiterStart = render.DefaultDelimiterStart
	}
	if cfg.DelimiterEnd == "" {
		cfg.DelimiterEnd = render.DefaultDelimiterEnd
	}
	if cfg.WrapperKey == "" {
		cfg.WrapperKey = cfg.Prefix + "wrapper.html"
	}

	return &StoreTemplateManager{store: store, cfg: cfg}, nil
}

func (m *StoreTemplateManager) ServiceName() string { return m.cfg.ServiceName }

func (m *StoreTemplateManager) Initialized() bool { return m.cfg.Initialized }

func (m *StoreTemplateManager) Delimiters() (string, string) {
	return m.cfg.DelimiterStart, m.cfg.DelimiterEnd
}

func (m *StoreTemplateManager) ValidateTemplate(body any) error {
	return m.cfg.ValidateTemplate(body)
}

// key maps a template code to its store key.
func (m *StoreTemplateManager) key(code string) string {
	return m.cfg.Prefix + code + "." + m.cfg.Extension
}

func (m *StoreTemplateManager) checkInitialized() error {
	if !m.cfg.Initialized {
		return common.NewConfigurationError(m.cfg.ServiceName)
	}
	return nil
}

// List returns every template stored under the service prefix, skipping
// blobs with a foreign extension (the HTML wrapper lives alongside them).
func (m *StoreTemplateManager) List(ctx context.Context) ([]*TemplateInfo, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}

	keys, err := m.store.List(ctx, m.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("listing templates for %s: %w", m.cfg.ServiceName, err)
	}

	suffix := "." + m.cfg.Extension
	infos := make([]*TemplateInfo, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, m.cfg.Prefix)
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		info, err := m.Retrieve(ctx, strings.TrimSuffix(name, suffix))
		if err != nil {
			return nil, err
		}
		if info != nil {
			infos = append(infos, info)
		}
	}

	return infos, nil
}

// Retrieve returns the template with the given code, or nil when absent.
func (m *StoreTemplateManager) Retrieve(ctx context.Context, code string) (*TemplateInfo, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}

	if cached, ok := m.cache.Load(code); ok {
		return cached.(*TemplateInfo), nil
	}

	blob, err := m.store.Get(ctx, m.key(code))
	if err != nil {
		var notFound *common.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("retrieving template %s/%s: %w", m.cfg.ServiceName, code, err)
	}

	var body any
	if err := json.Unmarshal(blob, &body); err != nil {
		return nil, common.NewTemplateParseError(fmt.Sprintf("template %s/%s is not valid JSON", m.cfg.ServiceName, code), err)
	}

	info, err := NewTemplateInfo(code, body, m.cfg.DelimiterStart, m.cfg.DelimiterEnd)
	if err != nil {
		return nil, err
	}

	m.cache.Store(code, info)
	return info, nil
}

// Create validates the body against the service schema and persists it.
func (m *StoreTemplateManager) Create(ctx context.Context, code string, body any) (*TemplateInfo, error) {
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	if err := m.cfg.ValidateTemplate(body); err != nil {
		return nil, err
	}

	blob, err := json.Marshal(body)
	if err != nil {
		return nil, common.NewTemplateParseError("serializing template body", err)
	}

	if err := m.store.Put(ctx, m.key(code), blob); err != nil {
		return nil, fmt.Errorf("storing template %s/%s: %w", m.cfg.ServiceName, code, err)
	}

	m.cache.Delete(code)
	return NewTemplateInfo(code, body, m.cfg.DelimiterStart, m.cfg.DelimiterEnd)
}

// Update replaces the stored body. The store has upsert semantics, so
// update and create share the same path.
func (m *StoreTemplateManager) Update(ctx context.Context, code string, body any) (*TemplateInfo, error) {
	return m.Create(ctx, code, body)
}

// Delete removes the stored template.
func (m *StoreTemplateManager) Delete(ctx context.Context, code string) error {
	if err := m.checkInitialized(); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, m.key(code)); err != nil {
		return fmt.Errorf("deleting template %s/%s: %w", m.cfg.ServiceName, code, err)
	}
	m.cache.Delete(code)
	return nil
}

// Render substitutes rctx into the template body.
func (m *StoreTemplateManager) Render(ctx context.Context, code string, rctx Context, policy render.Policy) (any, error) {
	info, err := m.Retrieve(ctx, code)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, common.NewNotFoundError("template", code)
	}

	return render.Render(info.Template, rctx, render.Options{
		Start:     m.cfg.DelimiterStart,
		End:       m.cfg.DelimiterEnd,
		Undefined: policy,
	})
}

// RenderHTML renders the template and executes the service's HTML wrapper
// with the rendered document as data. A missing wrapper blob is a
// NotFoundError: the wrapper is part of the service's deployment, not an
// optional extra.
func (m *StoreTemplateManager) RenderHTML(ctx context.Context, code string, rctx Context, policy render.Policy) (string, error) {
	rendered, err := m.Render(ctx, code, rctx, policy)
	if err != nil {
		return "", err
	}

	blob, err := m.store.Get(ctx, m.cfg.WrapperKey)
	if err != nil {
		var notFound *common.NotFoundError
		if errors.As(err, &notFound) {
			return "", common.NewNotFoundError("html wrapper", m.cfg.WrapperKey)
		}
		return "", fmt.Errorf("loading html wrapper %s: %w", m.cfg.WrapperKey, err)
	}

	wrapper, err := html.New("wrapper").Parse(string(blob))
	if err != nil {
		return "", common.NewTemplateParseError(fmt.Sprintf("parsing html wrapper %s", m.cfg.WrapperKey), err)
	}

	var buf bytes.Buffer
	if err := wrapper.Execute(&buf, rendered); err != nil {
		return "", fmt.Errorf("executing html wrapper %s: %w", m.cfg.WrapperKey, err)
	}

	return buf.String(), nil
}
