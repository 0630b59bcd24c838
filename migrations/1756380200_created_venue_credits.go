package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("venue_credits")

		collection.Fields.Add(
			&core.TextField{Name: "member", Required: true},
			&core.TextField{Name: "venue", Required: true},
			&core.NumberField{Name: "amount", Required: true},
			&core.NumberField{Name: "used_amount"},
			&core.SelectField{
				Name:      "status",
				Values:    []string{"active", "used", "expired", "cancelled"},
				MaxSelect: 1,
			},
			&core.DateField{Name: "expires_at", Required: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("venue_credits")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
