package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("bookings")

		collection.Fields.Add(
			&core.TextField{Name: "venue", Required: true},
			&core.TextField{Name: "venue_name"},
			&core.TextField{Name: "customer_name"},
			&core.EmailField{Name: "customer_email"},
			&core.SelectField{
				Name:      "status",
				Values:    []string{"pending", "confirmed", "checked_in", "cancelled", "completed"},
				MaxSelect: 1,
			},
			&core.DateField{Name: "booking_date", Required: true},
			&core.TextField{Name: "booking_time"},
			&core.TextField{Name: "table_number"},
			&core.NumberField{Name: "guest_count", OnlyInt: true},
			&core.TextField{Name: "qr_security_code"},
			&core.NumberField{Name: "scan_count", OnlyInt: true},
			&core.DateField{Name: "last_scanned_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
