package cmd

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"vendorsync/internal/api"
	"vendorsync/internal/logger"
	"vendorsync/pkg/models"
)

var vendorCmd = &cobra.Command{
	Use:   "vendor",
	Short: "Create, update or delete a vendor",
}

var vendorCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create a vendor",
	Example: `  vendorsync vendor create --name "Acme, Inc." --email billing@acme.test`,
	Args:    cobra.NoArgs,
	RunE:    runVendorCreate,
}

var vendorUpdateCmd = &cobra.Command{
	Use:     "update <vendor-id>",
	Short:   "Update vendor fields",
	Example: `  vendorsync vendor update 64f1aa --phone "+1 555 0100"`,
	Args:    cobra.ExactArgs(1),
	RunE:    runVendorUpdate,
}

var vendorDeleteCmd = &cobra.Command{
	Use:   "delete <vendor-id>",
	Short: "Delete a vendor",
	Args:  cobra.ExactArgs(1),
	RunE:  runVendorDelete,
}

func init() {
	rootCmd.AddCommand(vendorCmd)
	vendorCmd.AddCommand(vendorCreateCmd, vendorUpdateCmd, vendorDeleteCmd)

	for _, c := range []*cobra.Command{vendorCreateCmd, vendorUpdateCmd} {
		c.Flags().String("name", "", "Vendor name")
		c.Flags().String("email", "", "Billing email")
		c.Flags().String("phone", "", "Phone number")
		c.Flags().String("address", "", "Postal address")
	}
	_ = vendorCreateCmd.MarkFlagRequired("name")
}

// vendorClient builds an API client without loading the dashboard.
func vendorClient(cmd *cobra.Command, log zerolog.Logger) (*api.Client, error) {
	cfg, err := loadConfig(log)
	if err != nil {
		return nil, err
	}
	return newAPIClient(cfg, nil)
}

func runVendorCreate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("vendor")

	var in models.NewVendor
	in.Name, _ = cmd.Flags().GetString("name")
	in.Email, _ = cmd.Flags().GetString("email")
	in.Phone, _ = cmd.Flags().GetString("phone")
	in.Address, _ = cmd.Flags().GetString("address")

	client, err := vendorClient(cmd, log)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	v, err := client.CreateVendor(ctx, in)
	if err != nil {
		return handleAPIError(err, log)
	}

	log.Info().Str("vendor_id", v.ID).Str("name", v.Name).Msg("Vendor created")
	return printVendor(cmd, v, "Created", log)
}

func runVendorUpdate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("vendor")

	var patch models.VendorPatch
	fields := map[string]**string{
		"name":    &patch.Name,
		"email":   &patch.Email,
		"phone":   &patch.Phone,
		"address": &patch.Address,
	}
	changed := false
	for name, dst := range fields {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetString(name)
			*dst = &v
			changed = true
		}
	}
	if !changed {
		return fmt.Errorf("nothing to change. Pass at least one of --name, --email, --phone, --address")
	}

	client, err := vendorClient(cmd, log)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	v, err := client.UpdateVendor(ctx, args[0], patch)
	if err != nil {
		return handleAPIError(err, log)
	}
	return printVendor(cmd, v, "Updated", log)
}

func runVendorDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("vendor")

	client, err := vendorClient(cmd, log)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	if err := client.DeleteVendor(ctx, args[0]); err != nil {
		return handleAPIError(err, log)
	}
	out := map[string]any{"deleted": args[0], "kind": "vendor"}
	return writeOutput(cmd, out, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Deleted vendor %s\n", args[0])
		return err
	}, log)
}

func printVendor(cmd *cobra.Command, v models.Vendor, verb string, log zerolog.Logger) error {
	return writeOutput(cmd, v, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s vendor %s (%s)\n", verb, v.Name, v.ID)
		return err
	}, log)
}
