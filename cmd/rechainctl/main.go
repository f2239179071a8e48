package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rechain/rechain/internal/consensus"
	"github.com/rechain/rechain/pkg/merkle"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	rootCmd := &cobra.Command{Use: "rechainctl"}
	rootCmd.PersistentFlags().String("api", "http://127.0.0.1:1317", "REST API address of a running rechain node")
	viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))

	rootCmd.AddCommand(statusCmd(), keygenCmd(), devnetCmd())
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// statusCmd queries a running node's reactor state over its REST surface.
func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the consensus height, round and leader of a running node",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(viper.GetString("api") + "/consensus/state")
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("status: node returned %s: %s", resp.Status, body)
			}

			var state map[string]interface{}
			if err := json.Unmarshal(body, &state); err != nil {
				return fmt.Errorf("status: %w", err)
			}
			return json.NewEncoder(os.Stdout).Encode(state)
		},
	}
}

// keygenCmd generates a fresh local validator identity and prints its
// address, for seeding a new node's AddKeyRange call out of band.
func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new validator identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := consensus.GenerateLocalKey()
			if err != nil {
				return fmt.Errorf("keygen: %w", err)
			}
			keychain := consensus.NewSecp256k1Keychain()
			keychain.AddKeyRange(consensus.HeightRange{Start: 0, End: consensus.HeightNever}, key)
			signer, _ := keychain.Signer(context.Background())
			fmt.Printf("address: %s\n", signer.Hex())
			fmt.Printf("private_key: %s\n", hex.EncodeToString(crypto.FromECDSA(key)))
			return nil
		},
	}
}

// devnetCmd groups local devnet helpers that don't require a running node.
func devnetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Local devnet helpers",
	}
	cmd.AddCommand(devnetBlockIDCmd())
	return cmd
}

// devnetBlockIDCmd builds a stub block body from the given files' contents,
// Merkle-roots them, and prints the resulting BlockID. It exists so a
// developer can drive Propose/ReceiveVote against a real, reproducible
// BlockID without standing up the (explicitly out of scope) block
// production pipeline.
func devnetBlockIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blockid <file>...",
		Short: "Compute a deterministic devnet BlockID from file contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := make(map[string][]byte, len(args))
			for _, path := range args {
				contents, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("devnet blockid: %w", err)
				}
				data[path] = contents
			}
			tree, err := merkle.NewTree(data)
			if err != nil {
				return fmt.Errorf("devnet blockid: %w", err)
			}
			fmt.Println(tree.RootHash())
			return nil
		},
	}
}
