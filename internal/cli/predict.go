package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trast/internal/codec"

	"trast/pkg/types"
)

func buildPredictCmd() *cobra.Command {
	var (
		addr       string
		shape      string
		deadlineMS int64
	)
	cmd := &cobra.Command{
		Use:     "predict <v1,v2,...>",
		Short:   "Send one prediction to a running trast instance",
		Example: "  trast predict 1,2,3\n  trast predict --shape 2,2 1,2,3,4",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseFloats(args[0])
			if err != nil {
				return err
			}
			shp := []int{len(data)}
			if shape != "" {
				if shp, err = parseDims(shape); err != nil {
					return err
				}
			}
			req := types.PredictRequest{
				Input:      types.TensorPayload{DType: codec.DTypeF32, Shape: shp, Data: data},
				DeadlineMS: deadlineMS,
			}
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Post(strings.TrimRight(addr, "/")+"/predict", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				var er types.ErrorResponse
				if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
					return fmt.Errorf("server returned %s", resp.Status)
				}
				return fmt.Errorf("%s (%s, retryable=%v)", er.Error, er.Kind, er.Retryable)
			}
			var pr types.PredictResponse
			if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
				return err
			}
			out, err := json.Marshal(pr.Output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8000", "Base URL of the trast instance")
	cmd.Flags().StringVar(&shape, "shape", "", "Tensor shape, e.g. 2,3 (defaults to flat)")
	cmd.Flags().Int64Var(&deadlineMS, "deadline-ms", 0, "Per-request deadline in milliseconds (0 = server default)")
	return cmd
}

func parseFloats(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", p, err)
		}
		out = append(out, float32(f))
	}
	return out, nil
}

func parseDims(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid dimension %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}
