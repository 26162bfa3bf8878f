package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/keyhub/internal/config"
	"github.com/MarcoPoloResearchLab/keyhub/internal/importer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errImportSourceRequired = errors.New("either --file or import.base_url is required")

func newImportCommand() *cobra.Command {
	var (
		userID string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a user's legacy settings into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.LoadStorage(viper.GetViper())
			if err != nil {
				return err
			}
			appConfig.LegacyImportURL = strings.TrimSpace(viper.GetString("import.base_url"))
			appConfig.LegacyImportTimeout = viper.GetDuration("import.timeout")

			var source importer.PayloadSource
			switch {
			case file != "":
				staticSource, err := importer.LoadFile(file)
				if err != nil {
					return err
				}
				source = staticSource
			case appConfig.LegacyImportURL != "":
				source = importer.NewHTTPSource(appConfig.LegacyImportURL, appConfig.LegacyImportTimeout)
			default:
				return errImportSourceRequired
			}

			deps, err := openServices(appConfig)
			if err != nil {
				return err
			}
			defer deps.Close()

			imp, err := importer.New(importer.Config{
				Source:   source,
				Store:    deps.store,
				Presets:  deps.presets,
				Logger:   deps.logger,
				Recorder: deps.metrics,
			})
			if err != nil {
				return err
			}
			result, importErr := imp.Import(cmd.Context(), userID)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				return err
			}
			return importErr
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Canonical user id to import into")
	cmd.Flags().StringVar(&file, "file", "", "Read the legacy payload from a JSON or YAML file")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
