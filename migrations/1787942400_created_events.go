package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("events")

		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "date"},
			&core.TextField{Name: "time"},
			&core.TextField{Name: "location"},
			&core.TextField{Name: "description"},
			// Decimal string in base currency units.
			&core.TextField{Name: "ticket_price", Required: true},
			&core.NumberField{Name: "ticket_quantity", Required: true, OnlyInt: true, Min: types.Pointer(1.0)},
			&core.NumberField{Name: "available_tickets", OnlyInt: true, Min: types.Pointer(0.0)},
			&core.TextField{Name: "creator_address", Required: true},
			&core.TextField{Name: "collection_address"},
			&core.TextField{Name: "transaction_hash"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
