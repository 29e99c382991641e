package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rubin.dev/tlsprovider/conformance"
	"rubin.dev/tlsprovider/config"
	"rubin.dev/tlsprovider/crypto"
	"rubin.dev/tlsprovider/crypto/compress"
	"rubin.dev/tlsprovider/crypto/hashes"
	"rubin.dev/tlsprovider/crypto/sign"
)

// readInput reads the named file, or stdin when name is empty or "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

func inputArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (a *app) provider() (*crypto.Provider, error) {
	p, err := crypto.New(a.cfg, a.logger)
	if err != nil {
		return nil, usageError{err}
	}
	return p, nil
}

func newHashCmd(a *app) *cobra.Command {
	var algName string
	var fork bool
	cmd := &cobra.Command{
		Use:   "hash [file]",
		Short: "Print the transcript hash of a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := hashes.ParseHashAlgorithm(algName)
			if err != nil {
				return usageError{err}
			}
			data, err := readInput(cmd, inputArg(args))
			if err != nil {
				return err
			}
			p, err := a.provider()
			if err != nil {
				return err
			}
			defer p.Close()

			h, err := p.Hash(alg)
			if err != nil {
				return usageError{err}
			}
			ctx := h.Start()
			ctx.Update(data)
			if fork {
				// Intermediate value first, the context stays usable.
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  fork\n", ctx.ForkFinish())
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", ctx.Finish())
			return nil
		},
	}
	cmd.Flags().StringVar(&algName, "alg", "sha256", "hash algorithm: sha256|sha384|sha512")
	cmd.Flags().BoolVar(&fork, "fork", false, "also print the intermediate digest via ForkFinish")
	return cmd
}

func newCompressCmd(a *app) *cobra.Command {
	var algName, levelName string
	cmd := &cobra.Command{
		Use:   "compress [file]",
		Short: "Compress a Certificate message body and write the result to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := compress.ParseAlgorithm(algName)
			if err != nil {
				return usageError{err}
			}
			level, err := compress.ParseLevel(levelName)
			if err != nil {
				return usageError{err}
			}
			data, err := readInput(cmd, inputArg(args))
			if err != nil {
				return err
			}
			p, err := a.provider()
			if err != nil {
				return err
			}
			defer p.Close()

			out, err := p.CompressCertificate(alg, data, level)
			if err != nil {
				return err
			}
			a.logger.Info().
				Str("algorithm", alg.String()).
				Str("level", level.String()).
				Int("in", len(data)).
				Int("out", len(out)).
				Msg("compressed")
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&algName, "alg", "zlib", "compression algorithm: zlib|brotli|zstd")
	cmd.Flags().StringVar(&levelName, "level", "interactive", "compression level: interactive|amortized")
	return cmd
}

func newDecompressCmd(a *app) *cobra.Command {
	var algName string
	var length int
	cmd := &cobra.Command{
		Use:   "decompress [file]",
		Short: "Decompress to exactly --length bytes and write the result to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := compress.ParseAlgorithm(algName)
			if err != nil {
				return usageError{err}
			}
			if length < 0 {
				return usageError{errors.New("--length is required")}
			}
			data, err := readInput(cmd, inputArg(args))
			if err != nil {
				return err
			}
			p, err := a.provider()
			if err != nil {
				return err
			}
			defer p.Close()

			out, err := p.DecompressCertificate(alg, data, length)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&algName, "alg", "zlib", "compression algorithm: zlib|brotli|zstd")
	cmd.Flags().IntVar(&length, "length", -1, "expected uncompressed length in bytes")
	return cmd
}

func newSignCmd(a *app) *cobra.Command {
	var chain, key string
	var offered []string
	cmd := &cobra.Command{
		Use:   "sign [file]",
		Short: "Negotiate a scheme against --scheme and sign a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chain != "" {
				a.cfg.Signing.CertChain = chain
			}
			if key != "" {
				a.cfg.Signing.Key = key
			}
			if a.cfg.Signing.CertChain == "" {
				return usageError{errors.New("no signing identity: set signing.cert_chain or --chain")}
			}
			schemes := a.cfg.Signing.Schemes
			if len(offered) > 0 {
				var err error
				if schemes, err = sign.ParseSignatureSchemes(offered); err != nil {
					return usageError{err}
				}
			}
			data, err := readInput(cmd, inputArg(args))
			if err != nil {
				return err
			}
			p, err := a.provider()
			if err != nil {
				return err
			}
			defer p.Close()

			s, err := p.ChooseSigner(schemes)
			if err != nil {
				return err
			}
			sig, err := s.Sign(data)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", s.Scheme(), hex.EncodeToString(sig))
			return nil
		},
	}
	cmd.Flags().StringVar(&chain, "chain", "", "PEM certificate chain, end-entity first")
	cmd.Flags().StringVar(&key, "key", "", "PEM private key")
	cmd.Flags().StringSliceVar(&offered, "scheme", nil, "peer-offered schemes in preference order")
	return cmd
}

type checkResult struct {
	name string
	err  error
}

func newSelftestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the conformance checks against every enabled provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.provider()
			if err != nil {
				return err
			}
			defer p.Close()

			results := runChecks(p, a.cfg.Signing.Schemes)
			failed := 0
			for _, r := range results {
				status := "PASS"
				if r.err != nil {
					status = "FAIL"
					failed++
					a.logger.Error().Err(r.err).Str("check", r.name).Msg("conformance check failed")
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-4s %s\n", status, r.name)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, len(results))
			}
			return nil
		},
	}
}

// runChecks runs the checks concurrently. Results keep a stable order.
func runChecks(p *crypto.Provider, schemes []sign.SignatureScheme) []checkResult {
	var checks []checkResult
	var fns []func() error

	for _, h := range p.Hashes() {
		checks = append(checks, checkResult{name: "hash/" + h.Algorithm().String()})
		fns = append(fns, func() error { return conformance.CheckHash(h) })
	}
	reg := p.Compression()
	for _, alg := range reg.Algorithms() {
		c, d := reg.Compressor(alg), reg.Decompressor(alg)
		checks = append(checks, checkResult{name: "compress/" + alg.String()})
		fns = append(fns, func() error { return conformance.CheckCompression(c, d) })
	}
	if id := p.Identity(); id != nil {
		checks = append(checks, checkResult{name: "sign/" + id.Key.Algorithm().String()})
		fns = append(fns, func() error { return conformance.CheckSigningKey(id.Key, schemes) })
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, fn := range fns {
		g.Go(func() error {
			checks[i].err = fn()
			return nil
		})
	}
	_ = g.Wait()
	return checks
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := config.Render(*a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
