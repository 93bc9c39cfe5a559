package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/plano-ai/plano/internal/domain"
)

func init() {
	notificationsCmd.Flags().BoolVar(&notifPending, "pending", false, "Only notifications not yet shown")
	notificationsCmd.Flags().IntVarP(&notifLimit, "limit", "n", 20, "Maximum number to list")
	notificationsCmd.AddCommand(notificationsAckCmd)
	rootCmd.AddCommand(notificationsCmd)
}

var (
	notifPending bool
	notifLimit   int
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "List recent notifications",
	Args:    cobra.NoArgs,
	RunE:    runNotifications,
}

var notificationsAckCmd = &cobra.Command{
	Use:   "ack <id>",
	Short: "Mark a notification as shown",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotificationsAck,
}

func runNotifications(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	list, err := d.Notifications.List(notifLimit, notifPending)
	if err != nil {
		return err
	}
	return renderNotifications(cmd.OutOrStdout(), list)
}

func runNotificationsAck(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: notification id %q", domain.ErrValidation, args[0])
	}
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Notifications.MarkShown(id)
}
