package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("members")

		collection.Fields.Add(
			&core.TextField{Name: "name"},
			&core.EmailField{Name: "email"},
			&core.TextField{Name: "venue"},
			&core.SelectField{
				Name:      "tier",
				Values:    []string{"standard", "silver", "gold", "platinum"},
				MaxSelect: 1,
			},
			&core.TextField{Name: "qr_security_code"},
			&core.DateField{Name: "last_visit"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("members")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
