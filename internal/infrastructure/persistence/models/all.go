package models

// All returns every persistence model in dependency order.
// Used by AutoMigrate in sqlite mode and tests; Postgres uses the SQL migrations.
func All() []any {
	return []any{
		&CategoryModel{},
		&SubCategoryModel{},
		&ProductModel{},
		&ProductVariantModel{},
		&StockMovementModel{},
		&StockInModel{},
		&StockInItemModel{},
		&StockOutModel{},
		&StockOutItemModel{},
	}
}
