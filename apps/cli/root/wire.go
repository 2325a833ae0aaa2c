package root

import (
	"github.com/marmoreal/stonecms/apps/cli/cmd/admin"
	"github.com/marmoreal/stonecms/apps/cli/cmd/auth"
	"github.com/marmoreal/stonecms/apps/cli/cmd/migrate"
	"github.com/marmoreal/stonecms/apps/cli/cmd/seed"
	"github.com/marmoreal/stonecms/apps/cli/cmd/slug"
)

func init() {
	Root().AddCommand(migrate.Command())
	Root().AddCommand(seed.Command())
	Root().AddCommand(admin.Command())
	Root().AddCommand(auth.Command())
	Root().AddCommand(slug.Command())
}
