package seeders

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
)

// TestUserEmail and TestUserPassword are the seeded shopper credentials.
const (
	TestUserEmail    = "user@example.com"
	TestUserPassword = "User@12345"
)

// seedUsers creates (or re-keys) the admin and the test shopper. Re-running
// is harmless.
func seedUsers(ctx context.Context, d *Deps, out io.Writer) error {
	name := d.AdminName
	if name == "" {
		name = "Admin User"
	}
	admin, err := d.Auth.EnsureAdmin(ctx, name, d.AdminEmail, d.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	d.admin = admin

	_, err = d.Auth.Register(ctx, services.RegisterInput{
		Name:     "Test User",
		Email:    TestUserEmail,
		Password: TestUserPassword,
	})
	if err != nil && !errors.Is(err, services.ErrEmailTaken) {
		return fmt.Errorf("test user: %w", err)
	}

	fmt.Fprintf(out, "  admin %s, shopper %s\n", admin.Email, TestUserEmail)
	return nil
}

// seedProducts inserts the demo catalog, skipping slugs that already exist.
func seedProducts(ctx context.Context, d *Deps, out io.Writer) error {
	createdBy := ""
	if d.admin != nil {
		createdBy = d.admin.ID.Hex()
	}

	created := 0
	for _, in := range Catalog() {
		_, err := d.Catalog.Create(ctx, in, createdBy)
		switch {
		case err == nil:
			created++
		case errors.Is(err, services.ErrSlugTaken):
		default:
			return fmt.Errorf("%s: %w", in.Slug, err)
		}
	}
	fmt.Fprintf(out, "  %d products created\n", created)
	return nil
}

func product(name, slug, description string, price float64, category models.Category, weight float64, stock int, image string) services.ProductInput {
	return services.ProductInput{
		Name:        name,
		Slug:        slug,
		Description: description,
		Price:       &price,
		Category:    category,
		Weight:      &weight,
		Stock:       &stock,
		Images:      []string{image},
	}
}

// Catalog returns the demo products.
func Catalog() []services.ProductInput {
	return []services.ProductInput{
		product("Premium Wireless Headphones", "premium-wireless-headphones",
			"High-quality wireless headphones with active noise cancellation, 30-hour battery life, and premium sound quality. Perfect for music lovers and professionals.",
			299.99, models.Electronics, 0.25, 50, "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=500"),
		product("Smart Fitness Watch", "smart-fitness-watch",
			"Advanced fitness tracking watch with heart rate monitor, GPS, sleep tracking, and 7-day battery life. Water-resistant up to 50m.",
			249.99, models.Electronics, 0.05, 75, "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=500"),
		product("Classic Leather Jacket", "classic-leather-jacket",
			"Genuine leather jacket with premium finish. Timeless design that never goes out of style. Available in multiple sizes.",
			199.99, models.Clothing, 1.2, 30, "https://images.unsplash.com/photo-1551028719-00167b16eac5?w=500"),
		product("Cotton T-Shirt Pack", "cotton-tshirt-pack",
			"Premium quality 100% cotton t-shirts. Pack of 3 in assorted colors. Comfortable and durable for everyday wear.",
			39.99, models.Clothing, 0.4, 100, "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=500"),
		product("The Art of Programming", "art-of-programming",
			"Comprehensive guide to modern programming practices. Essential reading for developers at all levels.",
			49.99, models.Books, 0.8, 60, "https://images.unsplash.com/photo-1532012197267-da84d127e765?w=500"),
		product("Mindfulness & Meditation", "mindfulness-meditation",
			"Learn the art of mindfulness and meditation. Transform your life with daily practices and guided exercises.",
			24.99, models.Books, 0.5, 45, "https://images.unsplash.com/photo-1544947950-fa07a98d237f?w=500"),
		product("Indoor Plant Set", "indoor-plant-set",
			"Beautiful set of 3 low-maintenance indoor plants. Perfect for home or office. Includes decorative pots.",
			79.99, models.HomeGarden, 2.5, 25, "https://images.unsplash.com/photo-1485955900006-10f4d324d411?w=500"),
		product("Ceramic Dinnerware Set", "ceramic-dinnerware-set",
			"Elegant 16-piece ceramic dinnerware set. Dishwasher and microwave safe. Modern minimalist design.",
			129.99, models.HomeGarden, 5.0, 20, "https://images.unsplash.com/photo-1578749556568-bc2c40e68b61?w=500"),
		product("Yoga Mat Pro", "yoga-mat-pro",
			"Professional-grade yoga mat with excellent grip and cushioning. Non-slip surface, eco-friendly materials. Includes carrying strap.",
			59.99, models.Sports, 1.0, 55, "https://images.unsplash.com/photo-1601925260368-ae2f83cf8b7f?w=500"),
		product("Resistance Bands Set", "resistance-bands-set",
			"Complete set of 5 resistance bands with different strength levels. Perfect for home workouts and physical therapy.",
			34.99, models.Sports, 0.6, 80, "https://images.unsplash.com/photo-1598289431512-b97b0917affc?w=500"),
		product("Educational STEM Kit", "educational-stem-kit",
			"Fun and educational STEM learning kit for kids. Includes multiple projects to build and explore science concepts.",
			69.99, models.Toys, 1.5, 40, "https://images.unsplash.com/photo-1558060370-d644479cb6f7?w=500"),
		product("Organic Coffee Beans", "organic-coffee-beans",
			"Premium organic coffee beans, medium roast. Sourced from sustainable farms. Rich flavor and aroma.",
			18.99, models.Food, 0.5, 120, "https://images.unsplash.com/photo-1559056199-641a0ac8b55e?w=500"),
	}
}
