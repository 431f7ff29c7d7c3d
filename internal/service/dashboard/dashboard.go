package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jwalitptl/library-admin/internal/client"
	"github.com/jwalitptl/library-admin/internal/service/order"
	"github.com/jwalitptl/library-admin/internal/service/permission"
	"github.com/jwalitptl/library-admin/internal/session"
	"github.com/jwalitptl/library-admin/internal/worker"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
)

// DefaultSessionCheck is how often the stored session is re-read.
const DefaultSessionCheck = 30 * time.Second

type Options struct {
	SessionID    string
	Views        []order.View
	Order        order.Options
	SessionCheck time.Duration
	Logger       *logger.Logger
}

// Dashboard holds the resolved grant for one session and the order
// controllers built from it. A change of session or permission code
// rebuilds the controllers and their pollers.
type Dashboard struct {
	store  session.Store
	api    *client.Client
	perms  *permission.Service
	poller *worker.Poller
	opts   Options
	logger *logger.Logger

	reloadMu sync.Mutex

	mu          sync.RWMutex
	ctx         context.Context
	grant       permission.Grant
	grantErr    error
	controllers map[string]*order.Controller
}

func New(store session.Store, api *client.Client, poller *worker.Poller, opts Options) *Dashboard {
	if len(opts.Views) == 0 {
		opts.Views = order.Views()
	}
	if opts.SessionCheck == 0 {
		opts.SessionCheck = DefaultSessionCheck
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	opts.Order.Logger = log

	d := &Dashboard{
		store:       store,
		api:         api,
		poller:      poller,
		opts:        opts,
		logger:      log,
		grant:       permission.Grant{Set: permission.NewSet(nil, nil)},
		grantErr:    apperrors.PermissionUnresolved("permissions not loaded yet"),
		controllers: map[string]*order.Controller{},
	}
	d.perms = permission.NewSessionService(store, func(s session.Session) permission.Lister {
		return api.WithSession(s)
	}, log)
	return d
}

// Start resolves the session and keeps watching it until ctx is done. A
// failed first resolution is returned but the watch still runs, so a later
// login is picked up.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	err := d.Reload(ctx)
	if d.opts.SessionCheck > 0 {
		// the first tick repeats the reload above; it is a no-op when nothing changed
		if _, serr := d.poller.Subscribe(ctx, "session", d.opts.SessionCheck, d.watch); serr != nil {
			return serr
		}
	}
	return err
}

func (d *Dashboard) watch(ctx context.Context) error {
	err := d.Reload(ctx)
	if errors.Is(err, apperrors.ErrAuthMissing) || errors.Is(err, apperrors.ErrPermissionUnresolved) {
		return nil
	}
	return err
}

// Reload re-reads the session and re-resolves the permission code. Missing
// auth or an unresolved code tears the controllers down; other failures
// keep the current state.
func (d *Dashboard) Reload(ctx context.Context) error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()

	grant, err := d.perms.Resolve(ctx, d.opts.SessionID)
	if err != nil && !errors.Is(err, apperrors.ErrAuthMissing) && !errors.Is(err, apperrors.ErrPermissionUnresolved) {
		return err
	}
	if err == nil {
		if verr := grant.Session.Validate(time.Now()); verr != nil {
			grant, err = permission.Grant{Session: grant.Session, Set: permission.NewSet(nil, nil)}, verr
		}
	}

	d.mu.Lock()
	same := err == nil && d.grantErr == nil &&
		grant.Code == d.grant.Code && grant.Session.Token == d.grant.Session.Token
	d.grant = grant
	d.grantErr = err
	if same {
		d.mu.Unlock()
		return nil
	}
	old := d.controllers
	d.controllers = map[string]*order.Controller{}
	if err == nil {
		api := d.api.WithSession(grant.Session)
		for _, v := range d.opts.Views {
			d.controllers[v.Name] = order.NewController(api, grant.Code, v, d.opts.Order)
		}
	}
	fresh := d.controllers
	base := d.ctx
	d.mu.Unlock()

	for name, c := range old {
		if _, kept := fresh[name]; !kept {
			d.poller.Stop(pollKey(name))
		}
		c.Close()
	}

	if err != nil {
		d.logger.Warn("dashboard has no permission", "session_id", d.opts.SessionID, "error", err.Error())
		return err
	}

	if base == nil {
		base = context.Background()
	}
	for name, c := range fresh {
		c := c
		if _, serr := d.poller.Subscribe(base, pollKey(name), c.View().PollInterval, c.Refresh); serr != nil {
			return serr
		}
	}
	d.logger.Info("dashboard permission resolved", "session_id", d.opts.SessionID, "code", grant.Code)
	return nil
}

func pollKey(view string) string {
	return "orders:" + view
}

func (d *Dashboard) Grant() (permission.Grant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.grant, d.grantErr
}

// Ready reports whether a permission code is held.
func (d *Dashboard) Ready() bool {
	g, err := d.Grant()
	return err == nil && g.Resolved()
}

func (d *Dashboard) Nav() []permission.NavItem {
	g, _ := d.Grant()
	return permission.FilterNav(permission.DefaultNav(), g.Set)
}

// Controller returns the controller for view. Unknown or disabled views
// are not found; a known view without a grant is unresolved.
func (d *Dashboard) Controller(view string) (*order.Controller, error) {
	if _, ok := order.ViewByName(view); !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("unknown view %q", view))
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.controllers[view]; ok {
		return c, nil
	}
	if d.grantErr != nil {
		return nil, d.grantErr
	}
	return nil, apperrors.NotFound(fmt.Sprintf("view %q is not enabled", view))
}

func (d *Dashboard) Controllers() []*order.Controller {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*order.Controller, 0, len(d.controllers))
	for _, v := range d.opts.Views {
		if c, ok := d.controllers[v.Name]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Refreshables adapts the controllers for the transition refresher.
func (d *Dashboard) Refreshables() []worker.Refreshable {
	cs := d.Controllers()
	out := make([]worker.Refreshable, 0, len(cs))
	for _, c := range cs {
		out = append(out, c)
	}
	return out
}

// History joins the view's working list with the server's history records.
func (d *Dashboard) History(ctx context.Context, view string) ([]order.WithHistory, error) {
	c, err := d.Controller(view)
	if err != nil {
		return nil, err
	}
	g, _ := d.Grant()
	records, err := d.api.WithSession(g.Session).ListOrderHistory(ctx, c.PermissionCode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order history: %w", err)
	}
	return order.MergeHistory(c.Orders(), records), nil
}

// Catalog lists one catalog resource when the grant covers its table.
func (d *Dashboard) Catalog(ctx context.Context, name string, query url.Values) (interface{}, error) {
	entry, ok := catalog[name]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("unknown resource %q", name))
	}
	g, err := d.Grant()
	if err != nil {
		return nil, err
	}
	if !g.Set.HasTable(entry.table) {
		return nil, apperrors.PermissionUnresolved(fmt.Sprintf("no permission for %s", entry.table))
	}
	return entry.list(ctx, d.api.WithSession(g.Session), g.Code, query)
}

// Close stops every poller and controller.
func (d *Dashboard) Close() {
	d.poller.Stop("session")

	d.mu.Lock()
	old := d.controllers
	d.controllers = map[string]*order.Controller{}
	d.mu.Unlock()

	for name, c := range old {
		d.poller.Stop(pollKey(name))
		c.Close()
	}
}
