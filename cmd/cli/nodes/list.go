package nodes

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	listUseConstant              = "nodes"
	listShortDescriptionConstant = "List nodes defined in the inventory"
	listLongDescriptionConstant  = "nodes prints every inventory node with its type, marking the default node. Without an inventory only the local node is listed."
	listLineTemplateConstant     = "%s\t%s\t%s\n"
	defaultMarkerConstant        = "default"
	listedMessageConstant        = "listed nodes"
	nodeCountFieldConstant       = "node_count"
)

// ListCommandBuilder assembles the nodes command.
type ListCommandBuilder struct {
	LoggerProvider  LoggerProvider
	SessionProvider SessionProvider
}

// Build constructs the nodes command.
func (builder *ListCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   listUseConstant,
		Short: listShortDescriptionConstant,
		Long:  listLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	return command, nil
}

func (builder *ListCommandBuilder) run(command *cobra.Command, _ []string) error {
	logger := resolveLogger(builder.LoggerProvider)
	session, sessionError := resolveSession(builder.SessionProvider)
	if sessionError != nil {
		return sessionError
	}

	output := command.OutOrStdout()
	entries := session.Inventory.Entries()
	if len(entries) == 0 {
		fmt.Fprintf(output, listLineTemplateConstant, LocalNodeNameConstant, LocalNodeNameConstant, defaultMarkerConstant)
		logger.Debug(listedMessageConstant, zap.Int(nodeCountFieldConstant, 1))
		return nil
	}

	for _, entry := range entries {
		marker := ""
		if entry.IsDefault() {
			marker = defaultMarkerConstant
		}
		fmt.Fprint(output, strings.TrimRight(fmt.Sprintf(listLineTemplateConstant, entry.Name, entry.Type(), marker), "\t\n")+"\n")
	}
	logger.Debug(listedMessageConstant, zap.Int(nodeCountFieldConstant, len(entries)))
	return nil
}
