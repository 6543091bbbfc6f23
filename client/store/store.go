// Package store holds client-side application state: the signed-in
// session and the shopping cart. One App is created at startup and passed
// to whatever needs it; every change is persisted through a Persister and
// announced to subscribers.
//
//	app, err := store.New(store.NewFilePersister(path))
//	api := client.New(baseURL,
//	    client.WithToken(app.Auth().Token),
//	    client.OnUnauthorized(func() { _ = app.Auth().Logout() }))
//
// State is never synchronized with the server on its own; a product's
// stock in the cart is whatever it was when the product was added.
package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/storefront/app/models"
)

// Change names the part of the state that changed.
type Change string

const (
	AuthChanged Change = "auth"
	CartChanged Change = "cart"
)

type session struct {
	Token string             `json:"token,omitempty"`
	User  *models.PublicUser `json:"user,omitempty"`
}

// CartLine is one product in the cart. Product is the snapshot taken
// when the line was added.
type CartLine struct {
	Product  models.Product `json:"product"`
	Quantity int            `json:"quantity"`
}

type snapshot struct {
	Auth session    `json:"auth"`
	Cart []CartLine `json:"cart"`
}

// App is the injected application state.
type App struct {
	mu      sync.RWMutex
	state   snapshot
	persist Persister
	// saveMu orders saves so an older snapshot never lands after a newer one
	saveMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// New restores state from p. Unreadable state is an error rather than a
// silent reset.
func New(p Persister) (*App, error) {
	if p == nil {
		p = &MemoryPersister{}
	}
	a := &App{persist: p, subs: make(map[int]func(Change))}

	raw, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a.state); err != nil {
			return nil, fmt.Errorf("store: decode: %w", err)
		}
	}
	return a, nil
}

func (a *App) Auth() *Auth { return &Auth{app: a} }
func (a *App) Cart() *Cart { return &Cart{app: a} }

// Subscribe registers fn for every change and returns a func that
// removes it. fn runs synchronously on the goroutine that made the change.
func (a *App) Subscribe(fn func(Change)) (unsubscribe func()) {
	a.subMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.subMu.Unlock()

	return func() {
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
}

// update applies fn under the write lock, persists the result and then
// notifies subscribers outside the lock.
func (a *App) update(c Change, fn func(*snapshot) error) error {
	a.saveMu.Lock()
	a.mu.Lock()
	if err := fn(&a.state); err != nil {
		a.mu.Unlock()
		a.saveMu.Unlock()
		return err
	}
	raw, err := json.Marshal(a.state)
	a.mu.Unlock()
	if err == nil {
		err = a.persist.Save(raw)
		if err != nil {
			err = fmt.Errorf("store: save: %w", err)
		}
	} else {
		err = fmt.Errorf("store: encode: %w", err)
	}
	a.saveMu.Unlock()
	if err != nil {
		return err
	}

	a.subMu.Lock()
	fns := make([]func(Change), 0, len(a.subs))
	for _, f := range a.subs {
		fns = append(fns, f)
	}
	a.subMu.Unlock()
	for _, f := range fns {
		f(c)
	}
	return nil
}

func (a *App) read(fn func(*snapshot)) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fn(&a.state)
}
