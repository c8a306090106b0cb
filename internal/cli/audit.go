package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"github.com/conversa-ai/conversa/internal/audit"
	"github.com/conversa-ai/conversa/internal/config"
)

var (
	auditTailGroup string
	auditTailLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect orchestration audit events",
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the audit topic and print events",
	Run:   runAuditTail,
}

func init() {
	auditTailCmd.Flags().StringVarP(&auditTailGroup, "group", "g", "", "Consumer group id (default: read from the latest offset without a group)")
	auditTailCmd.Flags().IntVarP(&auditTailLimit, "limit", "n", 0, "Stop after this many events (0 = follow forever)")
	auditCmd.AddCommand(auditTailCmd)
}

func runAuditTail(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Audit.Brokers == "" {
		fmt.Println("No audit brokers configured; events are log-only. Set CONVERSA_AUDIT_BROKERS to enable Kafka.")
		os.Exit(1)
	}

	readerCfg := kafka.ReaderConfig{
		Brokers: strings.Split(cfg.Audit.Brokers, ","),
		Topic:   cfg.Audit.Topic,
		MaxWait: 3 * time.Second,
	}
	if auditTailGroup != "" {
		readerCfg.GroupID = auditTailGroup
	} else {
		readerCfg.Partition = 0
		readerCfg.StartOffset = kafka.LastOffset
	}
	reader := kafka.NewReader(readerCfg)
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printHeader("📋 Audit Tail")
	fmt.Printf("Topic: %s  Brokers: %s\n\n", cfg.Audit.Topic, cfg.Audit.Brokers)

	seen := 0
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		printAuditEvent(msg.Value)
		seen++
		if auditTailLimit > 0 && seen >= auditTailLimit {
			return
		}
	}
}

func printAuditEvent(payload []byte) {
	var ev audit.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		fmt.Printf("%s %s\n", color.HiBlackString("??"), string(payload))
		return
	}
	line := fmt.Sprintf("%s %s chat=%s model=%s iter=%d tokens=%d %s",
		color.HiBlackString(ev.Timestamp),
		color.CyanString(ev.Type),
		ev.ChatID, ev.Model, ev.Iterations, ev.TotalTokens, ev.StoppedReason)
	if len(ev.ToolNames) > 0 {
		line += " tools=" + strings.Join(ev.ToolNames, ",")
	}
	fmt.Println(line)
}
