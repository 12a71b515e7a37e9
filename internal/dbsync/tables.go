package dbsync

// Table describes one synced table. PK must be an integer auto-increment
// column; rows are copied by primary-key set difference.
type Table struct {
	Name string
	PK   string
	App  string
}

// SyncTables lists every application table in dependency order, so copied
// rows never reference a parent that has not been copied yet.
var SyncTables = []Table{
	{Name: "customers", PK: "id", App: "accounts"},
	{Name: "categories", PK: "id", App: "catalog"},
	{Name: "services", PK: "id", App: "catalog"},
	{Name: "combos", PK: "id", App: "catalog"},
	{Name: "combo_services", PK: "id", App: "catalog"},
	{Name: "promotions", PK: "id", App: "catalog"},
	{Name: "bank_accounts", PK: "id", App: "booking"},
	{Name: "time_slots", PK: "id", App: "booking"},
	{Name: "carts", PK: "id", App: "booking"},
	{Name: "cart_lines", PK: "id", App: "booking"},
	{Name: "reservations", PK: "id", App: "booking"},
	{Name: "reservation_lines", PK: "id", App: "booking"},
}

// TablesForApp filters the registry; an empty app means everything.
func TablesForApp(app string) []Table {
	if app == "" {
		return SyncTables
	}
	var out []Table
	for _, t := range SyncTables {
		if t.App == app {
			out = append(out, t)
		}
	}
	return out
}
