// Package dashboard holds the tab navigation state of the dashboard page.
package dashboard

import (
	"context"

	"github.com/noah-isme/sma-adp-dashboard/internal/models"
	"github.com/noah-isme/sma-adp-dashboard/internal/resource"
	"github.com/noah-isme/sma-adp-dashboard/internal/view"
	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
)

const tabRoute = "/dashboard/"

// Lister loads the rows of one tab.
type Lister interface {
	Meta() view.ListMeta
	List(ctx context.Context, creds models.Credentials) ([]view.Row, error)
	ListByParent(ctx context.Context, creds models.Credentials, parentID string) ([]view.Row, error)
}

// Panel is the content of the active tab. Err is set when the list call failed.
type Panel struct {
	Meta view.ListMeta
	Rows []view.Row
	Err  error
}

// State is the result of a tab selection: exactly one active indicator and
// the freshly listed panel for it.
type State struct {
	Active string
	Tabs   []view.Tab
	Panel  Panel
}

// Router switches between tabs. The first registered tab is the initial one.
type Router struct {
	order   []string
	listers map[string]Lister
}

// NewRouter registers listers in tab order.
func NewRouter(listers ...Lister) *Router {
	r := &Router{listers: make(map[string]Lister, len(listers))}
	for _, l := range listers {
		kind := l.Meta().Kind
		r.order = append(r.order, kind)
		r.listers[kind] = l
	}
	return r
}

// FromRegistry builds a Router over every registered resource.
func FromRegistry(reg *resource.Registry) *Router {
	var listers []Lister
	for _, kind := range reg.Kinds() {
		ctrl, _ := reg.Get(kind)
		listers = append(listers, ctrl)
	}
	return NewRouter(listers...)
}

// Initial returns the tab shown right after login.
func (r *Router) Initial() string {
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// Has reports whether tab is registered.
func (r *Router) Has(tab string) bool {
	_, ok := r.listers[tab]
	return ok
}

// Select activates tab and lists it. Only the selected resource is fetched;
// parentID narrows the list to one teacher when set. A failed list is
// reported on the panel, not as an error.
func (r *Router) Select(ctx context.Context, creds models.Credentials, tab, parentID string) (*State, error) {
	lister, ok := r.listers[tab]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown tab "+tab)
	}

	state := &State{Active: tab, Tabs: r.Tabs(tab)}
	state.Panel.Meta = lister.Meta()

	if parentID != "" {
		state.Panel.Rows, state.Panel.Err = lister.ListByParent(ctx, creds, parentID)
	} else {
		state.Panel.Rows, state.Panel.Err = lister.List(ctx, creds)
	}
	return state, nil
}

// Tabs returns the navigation indicators with only active marked.
func (r *Router) Tabs(active string) []view.Tab {
	tabs := make([]view.Tab, 0, len(r.order))
	for _, kind := range r.order {
		meta := r.listers[kind].Meta()
		tabs = append(tabs, view.Tab{
			Kind:   kind,
			Label:  meta.Heading,
			Icon:   meta.Icon,
			Href:   tabRoute + kind,
			Active: kind == active,
		})
	}
	return tabs
}
