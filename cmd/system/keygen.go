package system

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/clinic_backend/pkg/crypto"
	pasetotoken "github.com/Alijeyrad/clinic_backend/pkg/paseto"
)

func NewKeygenCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate token and field encryption keys",
		Long: `Print fresh PASETO keys and a field encryption key as config.yaml entries.
Rotating authentication.encryption_key makes existing encrypted columns unreadable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := pasetotoken.GenerateKeys(pasetotoken.Mode(mode))
			if err != nil {
				return err
			}
			enc, err := crypto.GenerateKeyHex()
			if err != nil {
				return err
			}

			ks := keys.Strings()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "authentication:")
			fmt.Fprintf(out, "  encryption_key: %q\n", enc)
			fmt.Fprintln(out, "  paseto:")
			fmt.Fprintf(out, "    mode: %q\n", ks.Mode)
			switch ks.Mode {
			case pasetotoken.ModeLocal:
				fmt.Fprintf(out, "    local_key_hex: %q\n", ks.SymmetricHex)
			case pasetotoken.ModePublic:
				fmt.Fprintf(out, "    secret_key_hex: %q\n", ks.SecretHex)
				fmt.Fprintf(out, "    public_key_hex: %q\n", ks.PublicHex)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(pasetotoken.ModeLocal), "token mode: local or public")

	return cmd
}
