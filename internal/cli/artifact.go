package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trast/internal/common/fsutil"
	"trast/internal/model"
)

func buildArtifactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Create model artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("artifact requires a subcommand: identity")
		},
	}

	var (
		id  string
		dim int
		out string
	)
	identity := &cobra.Command{
		Use:     "identity",
		Short:   "Write an identity model artifact, useful for smoke tests",
		Example: "  trast artifact identity --dim 3 --out ~/models/identity.trsm",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dim < 1 {
				return fmt.Errorf("dim must be >= 1, got %d", dim)
			}
			path, err := fsutil.ExpandHome(out)
			if err != nil {
				return err
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := model.WriteArtifact(f, model.Identity(id, dim)); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (id=%s, dim=%d)\n", path, id, dim)
			return nil
		},
	}
	identity.Flags().StringVar(&id, "id", "identity", "Model id embedded in the artifact")
	identity.Flags().IntVar(&dim, "dim", 3, "Input and output dimension")
	identity.Flags().StringVar(&out, "out", "identity.trsm", "Output path")
	cmd.AddCommand(identity)

	return cmd
}
