package models

// All returns every model managed by AutoMigrate, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&PoolTable{},
		&ProductCategory{},
		&Product{},
		&TableSession{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&ArLedgerEntry{},
		&Reservation{},
		&AuditLog{},
	}
}
