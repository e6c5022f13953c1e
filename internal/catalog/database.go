package catalog

import (
	"errors"
	"fmt"
	"time"

	"vendazap/pkg/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrConnectionUnavailable sinaliza que o banco não respondeu após todas as
// tentativas de reconexão.
var ErrConnectionUnavailable = errors.New("catálogo indisponível")

const (
	connectAttempts  = 5
	connectBaseDelay = time.Second
)

// Connect opens the catalog database with bounded exponential backoff. Each
// failed attempt doubles the wait; after the last one the error wraps
// ErrConnectionUnavailable so callers can degrade gracefully.
func Connect(dsn string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	var lastErr error
	delay := connectBaseDelay
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := gorm.Open(postgres.Open(dsn), config)
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("✅ Database connection recovered")
			}
			return db, nil
		}

		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", connectAttempts).
			Dur("retry_in", delay).Msg("⚠️ Database connection failed, retrying")
		if attempt < connectAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrConnectionUnavailable, lastErr)
}

// AutoMigrate runs GORM migrations plus the helper function used by
// accent-insensitive product search.
func AutoMigrate(db *gorm.DB) error {
	log.Info().Msg("Running GORM AutoMigrate...")

	if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
		return fmt.Errorf("failed to run GORM AutoMigrate: %w", err)
	}

	statements := []string{
		`CREATE OR REPLACE FUNCTION normalize_text(input_text TEXT) RETURNS TEXT AS $$
		BEGIN
			RETURN lower(
				translate(
					input_text,
					'áàâãäåéèêëíìîïóòôõöúùûüýÿñç',
					'aaaaaaeeeeiiiioooooouuuuyync'
				)
			);
		END;
		$$ LANGUAGE plpgsql IMMUTABLE;`,
		`CREATE INDEX IF NOT EXISTS idx_products_nome_normalizado ON products(normalize_text(name))`,
		`CREATE INDEX IF NOT EXISTS idx_products_sales_count ON products(sales_count DESC)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			log.Warn().Err(err).Msg("Warning: failed to create search helper")
		}
	}

	log.Info().Msg("GORM AutoMigrate completed successfully")
	return nil
}

// Seed popula um catálogo de demonstração quando a tabela está vazia.
// Idempotente: nada acontece se já existirem produtos.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check products count: %w", err)
	}
	if count > 0 {
		return nil
	}

	log.Info().Msg("Seeding demo catalog...")

	products := []models.Product{
		{Code: 1001, Name: "Coca Cola 2L", Category: "Bebidas", UnitPrice: 9.50, WholesalePrice: 8.20, WholesaleMinQty: 6, SalesCount: 120},
		{Code: 1002, Name: "Guaraná Antarctica 2L", Category: "Bebidas", UnitPrice: 7.90, WholesalePrice: 6.80, WholesaleMinQty: 6, SalesCount: 95},
		{Code: 1003, Name: "Água Mineral 500ml", Category: "Bebidas", UnitPrice: 2.00, WholesalePrice: 1.50, WholesaleMinQty: 12, SalesCount: 210},
		{Code: 2001, Name: "Detergente Ypê Neutro 500ml", Category: "Limpeza", UnitPrice: 2.80, WholesalePrice: 2.30, WholesaleMinQty: 12, SalesCount: 75},
		{Code: 2002, Name: "Sabão em Pó Omo 1kg", Category: "Limpeza", UnitPrice: 14.90, WholesalePrice: 12.90, WholesaleMinQty: 6, SalesCount: 60},
		{Code: 3001, Name: "Arroz Branco Tipo 1 5kg", Category: "Alimentos", UnitPrice: 24.90, WholesalePrice: 21.90, WholesaleMinQty: 4, SalesCount: 180},
		{Code: 3002, Name: "Feijão Carioca 1kg", Category: "Alimentos", UnitPrice: 8.50, WholesalePrice: 7.20, WholesaleMinQty: 10, SalesCount: 140},
	}
	if err := db.Create(&products).Error; err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	customer := models.Customer{CNPJ: "12345678000195", Name: "Mercado Exemplo LTDA"}
	if err := db.Create(&customer).Error; err != nil {
		return fmt.Errorf("failed to seed customer: %w", err)
	}

	log.Info().Int("products", len(products)).Msg("✅ Demo catalog seeded")
	return nil
}
