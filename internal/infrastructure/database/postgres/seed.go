package postgres

import (
	"errors"
	"fmt"

	"github.com/kg-components/storefront/internal/config"
	"github.com/kg-components/storefront/internal/domain/product"
	"github.com/kg-components/storefront/internal/domain/user"
	"github.com/kg-components/storefront/internal/pkg/auth"
	"github.com/kg-components/storefront/internal/store"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var defaultCategories = []product.Category{
	{Name: "Tools", Description: "Professional-grade soldering equipment, precision tools, and workstation accessories"},
	{Name: "Accessories", Description: "Cables, connectors, enclosures, and other essential components"},
	{Name: "Instruments", Description: "Precision measurement devices and specialized electronic instruments"},
	{Name: "Power Products", Description: "Power supplies, batteries, and energy management solutions"},
	{Name: "Test and Measurements", Description: "Oscilloscopes, multimeters, and other diagnostic equipment"},
}

type demoProduct struct {
	category    string
	name        string
	description string
	price       string
	stock       int
	imageURL    string
	featured    bool
}

var demoProducts = []demoProduct{
	{"Tools", "Weller WE1010NA Digital Soldering Station", "70W digital soldering station with LCD display, temperature stability, and sleep mode function.", "149.95", 15, "https://mantech.co.za/Product/Image?product=WE1010NA&ss=0", true},
	{"Tools", "Engineer PA-09 Micro Diagonal Cutters", "Precision micro diagonal cutters with sharp blades for fine electronics work.", "38.50", 30, "", false},
	{"Tools", "Pro'sKit PK-2086B Anti-Static Tweezers", "Anti-static fine tip tweezers for SMD component handling and repair.", "12.99", 50, "", false},
	{"Test and Measurements", "Rigol DS1054Z Digital Oscilloscope", "50MHz bandwidth, 4 channels, 1GSa/s sample rate digital oscilloscope.", "379.00", 8, "https://mantech.co.za/Product/Image?product=DS1054Z&ss=0", true},
	{"Test and Measurements", "Fluke 117 Electricians Multimeter", "Digital multimeter with non-contact voltage detection for electrical troubleshooting.", "199.95", 12, "", false},
	{"Test and Measurements", "Hantek DSO5102P Digital Storage Oscilloscope", "100MHz bandwidth, 2 channels, 1GSa/s sample rate digital oscilloscope with USB connectivity.", "299.00", 5, "", false},
	{"Power Products", "Meanwell LRS-350-24 Power Supply", "24V 14.6A 350W Single Output Switching Power Supply.", "45.99", 25, "https://mantech.co.za/Product/Image?product=LRS-350-24&ss=0", true},
	{"Power Products", "FTDI USB-C to TTL Serial Converter", "3.3V/5V USB-C to UART TTL Serial Converter with FT232RL chip.", "18.50", 40, "", false},
	{"Power Products", "LM2596 DC-DC Buck Converter", "Step-Down Power Module with display, 3A adjustable regulator.", "8.99", 100, "", false},
	{"Instruments", "JBC CD-2BE Soldering Station", "High performance compact soldering station with sleep and hibernation modes.", "450.00", 5, "https://mantech.co.za/Product/Image?product=CD-2BE&ss=0", true},
	{"Instruments", "Hakko FX-888D Digital Soldering Station", "Digital display soldering station with temperature control and preset temperatures.", "129.95", 18, "", false},
	{"Instruments", "Atten ST-862D Hot Air Rework Station", "Hot air rework station with digital display, temperature control, and auto-cooling.", "189.00", 7, "", false},
	{"Accessories", "Arduino Uno R3 Development Board", "ATmega328P microcontroller board with 14 digital I/O pins and 6 analog inputs.", "24.95", 35, "https://mantech.co.za/Product/Image?product=A000066&ss=0", true},
	{"Accessories", "Raspberry Pi 4 Model B 4GB", "Single-board computer with 4GB RAM, WiFi, Bluetooth, and dual 4K display support.", "59.99", 20, "", false},
	{"Accessories", "ESP32 Development Board", "Dual-core microcontroller with WiFi and Bluetooth for IoT applications.", "12.50", 45, "", false},
}

// SeedInitialData inserts the default categories, the demo products and the
// admin account. Existing rows are left alone.
func (m *Migration) SeedInitialData(cfg *config.Config) error {
	m.log.Info("seeding initial data")

	categories, err := m.seedCategories()
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	if err := m.seedDemoProducts(categories); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	if err := m.seedAdminUser(cfg); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	m.log.Info("initial data seeded")
	return nil
}

// seedCategories ensures the default categories and returns every category
// id by name.
func (m *Migration) seedCategories() (map[string]*product.Category, error) {
	out := make(map[string]*product.Category, len(defaultCategories))
	for _, c := range defaultCategories {
		category := c
		if err := m.db.Where("name = ?", category.Name).FirstOrCreate(&category).Error; err != nil {
			return nil, err
		}
		out[category.Name] = &category
	}
	return out, nil
}

// seedDemoProducts inserts the demo catalog unless products already exist
func (m *Migration) seedDemoProducts(categories map[string]*product.Category) error {
	var count int64
	if err := m.db.Model(&product.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		m.log.WithField("products", count).Debug("products already exist, skipping demo catalog")
		return nil
	}

	rows := make([]product.Product, 0, len(demoProducts))
	for _, d := range demoProducts {
		p := product.Product{
			Name:        d.name,
			Description: d.description,
			Price:       decimal.RequireFromString(d.price),
			Stock:       d.stock,
			ImageURL:    d.imageURL,
			IsFeatured:  d.featured,
		}
		if c, ok := categories[d.category]; ok {
			p.CategoryID = &c.ID
		}
		rows = append(rows, p)
	}

	if err := m.db.Create(&rows).Error; err != nil {
		return err
	}
	m.log.WithField("products", len(rows)).Info("demo products imported")
	return nil
}

// seedAdminUser creates the admin account with its profile. Without
// SEED_ADMIN_PASSWORD no account is created.
func (m *Migration) seedAdminUser(cfg *config.Config) error {
	email := store.NormalizeEmail(cfg.Database.AdminEmail)
	if email == "" || cfg.Database.AdminPassword == "" {
		m.log.Warn("SEED_ADMIN_PASSWORD not set, skipping admin account")
		return nil
	}

	var existing store.AuthUser
	err := m.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		m.log.WithField("email", email).Debug("admin user already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := auth.NewPasswordManager(cfg).HashPassword(cfg.Database.AdminPassword)
	if err != nil {
		return err
	}

	return m.db.Transaction(func(tx *gorm.DB) error {
		admin := store.AuthUser{
			Email:        email,
			PasswordHash: hash,
			Metadata:     map[string]any{"full_name": "Administrator"},
		}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}

		profile := user.Profile{
			ID:       admin.ID,
			Email:    email,
			FullName: "Administrator",
			IsAdmin:  true,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}

		m.log.WithField("email", email).Info("created admin user")
		return nil
	})
}
