package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"adminconsole/pkg/domain"
	"adminconsole/pkg/listing"
	"adminconsole/services/console/internal/notify"
	"adminconsole/services/console/internal/resource"
)

// RecordAPI is the CRUD surface of one catalog resource.
type RecordAPI interface {
	List(ctx context.Context, page, limit int, search string, filters map[string]string) (listing.Page[domain.Record], error)
	Create(ctx context.Context, rec domain.Record) (domain.Record, error)
	Update(ctx context.Context, id string, rec domain.Record) (domain.Record, error)
	Delete(ctx context.Context, id string) error
}

// Definition describes a catalog resource.
type Definition struct {
	Name    string   `yaml:"name"`
	Path    string   `yaml:"path"`
	Label   string   `yaml:"label"`
	Filters []string `yaml:"filters"`
}

// DefaultDefinitions are the list pages the console ships with besides the
// forum.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "users", Path: "/users", Label: "Pengguna", Filters: []string{"role"}},
		{Name: "products", Path: "/products", Label: "Produk", Filters: []string{"category", "status"}},
		{Name: "events", Path: "/events", Label: "Acara", Filters: []string{"status"}},
		{Name: "polls", Path: "/polls", Label: "Polling", Filters: []string{"status"}},
		{Name: "notifications", Path: "/notifications", Label: "Notifikasi", Filters: []string{"type"}},
		{Name: "media", Path: "/media", Label: "Media", Filters: []string{"type"}},
	}
}

// Resource is one catalog list page.
type Resource struct {
	def  Definition
	api  RecordAPI
	list *resource.Controller[domain.Record]
}

// Config carries what every resource shares.
type Config struct {
	Notifier    notify.Notifier
	PageSize    int
	Observer    resource.FetchObserver
	Logger      *slog.Logger
	ListOptions []resource.Option
}

// NewResource builds the list page for def.
func NewResource(def Definition, api RecordAPI, cfg Config) *Resource {
	r := &Resource{def: def, api: api}
	r.list = resource.New(resource.Config[domain.Record]{
		Name: def.Name,
		Source: resource.SourceFunc[domain.Record](func(ctx context.Context, p resource.ListParams) (listing.Page[domain.Record], error) {
			return api.List(ctx, p.Page, p.Limit, p.Search, p.Filters)
		}),
		Notifier:   cfg.Notifier,
		PageSize:   cfg.PageSize,
		FetchError: fmt.Sprintf("Gagal memuat data %s", strings.ToLower(def.Label)),
		Observer:   cfg.Observer,
		Logger:     cfg.Logger,
	}, cfg.ListOptions...)
	return r
}

func (r *Resource) Definition() Definition                    { return r.def }
func (r *Resource) List() *resource.Controller[domain.Record] { return r.list }

// SetFilter applies one of the resource's declared filters.
func (r *Resource) SetFilter(ctx context.Context, key, value string) error {
	if !slices.Contains(r.def.Filters, key) {
		return fmt.Errorf("%w: %s has no filter %q", resource.ErrValidation, r.def.Name, key)
	}
	return r.list.SetFilter(ctx, key, value)
}

func (r *Resource) messages(verb, done string) resource.Messages {
	label := strings.ToLower(r.def.Label)
	return resource.Messages{
		Pending: fmt.Sprintf("%s %s...", verb, label),
		Success: fmt.Sprintf("%s berhasil %s", r.def.Label, done),
		Failure: fmt.Sprintf("Gagal %s %s", strings.ToLower(verb), label),
	}
}

func (r *Resource) Create(ctx context.Context, rec domain.Record) error {
	return r.list.Mutate(ctx, r.messages("Menyimpan", "disimpan"), func(ctx context.Context) error {
		_, err := r.api.Create(ctx, rec)
		return err
	})
}

func (r *Resource) Update(ctx context.Context, id string, rec domain.Record) error {
	return r.list.Mutate(ctx, r.messages("Memperbarui", "diperbarui"), func(ctx context.Context) error {
		_, err := r.api.Update(ctx, id, rec)
		return err
	})
}

func (r *Resource) Delete(ctx context.Context, id string, confirm resource.Confirm) error {
	return r.list.Delete(ctx, confirm, r.messages("Menghapus", "dihapus"), func(ctx context.Context) error {
		return r.api.Delete(ctx, id)
	})
}

// Catalog holds the resources by name, in definition order.
type Catalog struct {
	order     []string
	resources map[string]*Resource
}

// New builds a catalog; api returns the endpoints for a resource path.
func New(defs []Definition, api func(path string) RecordAPI, cfg Config) (*Catalog, error) {
	c := &Catalog{resources: make(map[string]*Resource, len(defs))}
	for _, def := range defs {
		def.Name = strings.TrimSpace(def.Name)
		if def.Name == "" || strings.TrimSpace(def.Path) == "" {
			return nil, fmt.Errorf("catalog resource needs name and path: %+v", def)
		}
		if _, dup := c.resources[def.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog resource %q", def.Name)
		}
		if def.Label == "" {
			def.Label = def.Name
		}
		c.resources[def.Name] = NewResource(def, api(def.Path), cfg)
		c.order = append(c.order, def.Name)
	}
	return c, nil
}

// Get returns the named resource.
func (c *Catalog) Get(name string) (*Resource, bool) {
	r, ok := c.resources[name]
	return r, ok
}

// Names lists resource names in definition order.
func (c *Catalog) Names() []string { return slices.Clone(c.order) }

// Close stops every resource's background work.
func (c *Catalog) Close() {
	for _, r := range c.resources {
		r.list.Close()
	}
}
