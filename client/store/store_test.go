package store_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/client/store"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

func product(name string, price float64, stock int) models.Product {
	return models.Product{ID: primitive.NewObjectID(), Name: name, Price: price, Stock: stock}
}

func TestCartIsBoundedByStock(t *testing.T) {
	app, err := store.New(nil)
	require.NoError(t, err)
	cart := app.Cart()

	mat := product("Yoga Mat Pro", 59.99, 3)
	require.NoError(t, cart.Add(mat, 2))
	require.NoError(t, cart.Add(mat, 2))
	assert.Equal(t, 3, cart.TotalItems())

	require.NoError(t, cart.SetQuantity(mat.ID.Hex(), 10))
	assert.Equal(t, 3, cart.Items()[0].Quantity)

	assert.ErrorIs(t, cart.Add(product("Sold Out", 1, 0), 1), store.ErrOutOfStock)

	beans := product("Organic Coffee Beans", 18.99, 120)
	require.NoError(t, cart.Add(beans, 1))
	assert.Equal(t, "198.96", cart.TotalPrice().StringFixed(2))

	lines := cart.OrderLines()
	require.Len(t, lines, 2)
	assert.Equal(t, services.OrderLineInput{Product: mat.ID.Hex(), Quantity: 3}, lines[0])

	require.NoError(t, cart.SetQuantity(mat.ID.Hex(), 0))
	assert.Len(t, cart.Items(), 1)
	require.NoError(t, cart.Clear())
	assert.Zero(t, cart.TotalItems())
}

func TestSubscribe(t *testing.T) {
	app, err := store.New(nil)
	require.NoError(t, err)

	var seen []store.Change
	unsubscribe := app.Subscribe(func(c store.Change) { seen = append(seen, c) })

	require.NoError(t, app.Auth().SignIn(&services.AuthResult{Token: "t", User: models.PublicUser{Role: rbac.RoleAdmin}}))
	require.NoError(t, app.Cart().Add(product("Book", 10, 1), 1))
	unsubscribe()
	require.NoError(t, app.Auth().Logout())

	assert.Equal(t, []store.Change{store.AuthChanged, store.CartChanged}, seen)
}

func TestStateSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "storefront.json")
	p := store.NewFilePersister(path)

	app, err := store.New(p)
	require.NoError(t, err)
	require.NoError(t, app.Auth().SignIn(&services.AuthResult{
		Token: "jwt", User: models.PublicUser{ID: "u1", Name: "Admin User", Role: rbac.RoleAdmin},
	}))
	require.NoError(t, app.Cart().Add(product("Book", 24.99, 5), 2))

	again, err := store.New(store.NewFilePersister(path))
	require.NoError(t, err)
	assert.Equal(t, "jwt", again.Auth().Token())
	assert.True(t, again.Auth().IsAdmin())
	assert.Equal(t, 2, again.Cart().TotalItems())

	// Logging out keeps the cart.
	require.NoError(t, again.Auth().Logout())
	reloaded, err := store.New(store.NewFilePersister(path))
	require.NoError(t, err)
	assert.False(t, reloaded.Auth().IsAuthenticated())
	assert.Equal(t, 2, reloaded.Cart().TotalItems())
}

func TestEncryptedPersister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.enc")
	p, err := store.NewEncryptedPersister(store.NewFilePersister(path), "client-secret")
	require.NoError(t, err)

	app, err := store.New(p)
	require.NoError(t, err)
	require.NoError(t, app.Auth().SignIn(&services.AuthResult{Token: "very-secret-jwt"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "very-secret-jwt")

	again, err := store.New(p)
	require.NoError(t, err)
	assert.Equal(t, "very-secret-jwt", again.Auth().Token())

	wrong, err := store.NewEncryptedPersister(store.NewFilePersister(path), "other-secret")
	require.NoError(t, err)
	_, err = store.New(wrong)
	assert.Error(t, err)
}

// slowPersister takes longer to save earlier snapshots, so unordered saves
// would leave an old one on top.
type slowPersister struct {
	store.MemoryPersister
	mu    sync.Mutex
	calls int
}

func (p *slowPersister) Save(data []byte) error {
	p.mu.Lock()
	p.calls++
	delay := time.Duration(max(20-p.calls, 0)) * time.Millisecond
	p.mu.Unlock()
	time.Sleep(delay)
	return p.MemoryPersister.Save(data)
}

func TestConcurrentUpdatesPersistLatestState(t *testing.T) {
	p := &slowPersister{}
	app, err := store.New(p)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			assert.NoError(t, app.Cart().Add(product("Book", 24.99, 1), 1))
		})
	}
	wg.Wait()
	require.Equal(t, 20, app.Cart().TotalItems())

	reloaded, err := store.New(&p.MemoryPersister)
	require.NoError(t, err)
	assert.Equal(t, 20, reloaded.Cart().TotalItems())
}
