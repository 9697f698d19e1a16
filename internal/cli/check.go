package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trast/internal/common/fsutil"
	"trast/internal/model"
)

func buildCheckCmd() *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:     "check <artifact>",
		Short:   "Validate a model artifact without serving",
		Example: "  trast check ~/models/identity.trsm",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := fsutil.ExpandHome(args[0])
			if err != nil {
				return err
			}
			hdl, err := model.Load(path, model.DeviceConfig{Device: device})
			if err != nil {
				return fmt.Errorf("artifact rejected: %w", err)
			}
			defer hdl.Close()
			sig := hdl.Signature()
			size, _ := fsutil.FileSize(path)
			fmt.Fprintf(cmd.OutOrStdout(), "id:             %s\n", hdl.ID())
			fmt.Fprintf(cmd.OutOrStdout(), "format version: %d\n", hdl.FormatVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "input dim:      %d\n", sig.InputDim)
			fmt.Fprintf(cmd.OutOrStdout(), "output dim:     %d\n", sig.OutputDim)
			fmt.Fprintf(cmd.OutOrStdout(), "size:           %d bytes\n", size)
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", "cpu", "Compute device to validate against")
	return cmd
}
