package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/downline/pkg/downline"
	"github.com/matzehuels/downline/pkg/render/bubble/sink"
	"github.com/matzehuels/downline/pkg/tree"
)

// defaultOwner is the owner used by member commands when --owner is not set.
func defaultOwner() string {
	if o := strings.TrimSpace(os.Getenv("DOWNLINE_OWNER")); o != "" {
		return o
	}
	return "local"
}

// memberCommand creates the member command and its subcommands, which edit
// an owner's tree in the configured store.
func (c *CLI) memberCommand() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:     "member",
		Aliases: []string{"members"},
		Short:   "Add, move, remove and list members",
		Long: `Add, move, remove and list the members of an owner's tree.

Every owner has a root ("me-<owner>") created by "member init". Members sit
one to three levels below it and each parent takes at most seven downlines.
Deleting a member removes its downlines too.`,
	}
	cmd.PersistentFlags().StringVar(&owner, "owner", defaultOwner(), "tree owner (default: $DOWNLINE_OWNER or \"local\")")

	cmd.AddCommand(c.memberInitCommand(&owner))
	cmd.AddCommand(c.memberAddCommand(&owner))
	cmd.AddCommand(c.memberRemoveCommand(&owner))
	cmd.AddCommand(c.memberMoveCommand(&owner))
	cmd.AddCommand(c.memberListCommand(&owner))
	cmd.AddCommand(c.memberExportCommand(&owner))

	return cmd
}

// withService opens the store for the duration of fn.
func (c *CLI) withService(cmd *cobra.Command, fn func(*downline.Service) error) error {
	svc, st, err := c.newService(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(svc)
}

func (c *CLI) memberInitCommand(owner *string) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the owner's root member, or rename it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc *downline.Service) error {
				res, err := svc.Initialize(cmd.Context(), *owner, name)
				if err != nil {
					return err
				}
				printSuccess("Root %s ready", StyleHighlight.Render(res.Record.Name))
				printKeyValue("ID", res.Record.ID)
				printKeyValue("Members", strconv.Itoa(res.Tree.Len()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name of the root")
	return cmd
}

func (c *CLI) memberAddCommand(owner *string) *cobra.Command {
	var (
		id      string
		parent  string
		capital float64
		level   int
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a member under a parent",
		Long: `Add a member under a parent.

First-level members go under the root when --parent is empty. Second- and
third-level members need a --parent one level above them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("level") {
				return fmt.Errorf("--level is required")
			}
			return c.withService(cmd, func(svc *downline.Service) error {
				ctx := cmd.Context()
				res, err := svc.Add(ctx, *owner, downline.AddRequest{
					ID:       id,
					Name:     args[0],
					Capital:  capital,
					Level:    tree.Level(level),
					ParentID: parent,
				})
				if err != nil {
					return err
				}
				n, err := svc.ChildrenCount(ctx, *owner, res.Record.ParentID)
				if err != nil {
					return err
				}
				loggerFromContext(ctx).Debug("member added", "owner", *owner, "id", res.Record.ID)

				printSuccess("Added %s", StyleHighlight.Render(res.Record.Name))
				printKeyValue("ID", res.Record.ID)
				printKeyValue("Level", res.Record.Level.String())
				printKeyValue("Capital", sink.FormatCapital(res.Record.Capital))
				printKeyValue("Parent", fmt.Sprintf("%s (%d/%d)", res.Record.ParentID, n, tree.MaxGroupSize))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "member id (default: generated)")
	cmd.Flags().StringVar(&parent, "parent", "", "parent member id")
	cmd.Flags().Float64Var(&capital, "capital", 0, "starting capital")
	cmd.Flags().IntVarP(&level, "level", "l", 0, "member level: 1, 2 or 3")
	return cmd
}

func (c *CLI) memberRemoveCommand(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Remove a member and its downlines",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc *downline.Service) error {
				res, err := svc.Delete(cmd.Context(), *owner, args[0])
				if err != nil {
					return err
				}
				printSuccess("Removed %s", StyleHighlight.Render(res.Record.Name))
				printDetail("%d member(s) deleted", res.Removed)
				return nil
			})
		},
	}
}

func (c *CLI) memberMoveCommand(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:     "mv ID PARENT",
		Aliases: []string{"move"},
		Short:   "Move a member to another parent on the same level",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc *downline.Service) error {
				res, err := svc.Reassign(cmd.Context(), *owner, args[0], args[1])
				if err != nil {
					return err
				}
				printSuccess("Moved %s under %s", StyleHighlight.Render(res.Record.Name), res.Record.ParentID)
				return nil
			})
		},
	}
}

func (c *CLI) memberListCommand(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List the owner's members",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc *downline.Service) error {
				t, err := svc.Snapshot(cmd.Context(), *owner)
				if err != nil {
					return err
				}
				if len(t.FirstLevel) == 0 && t.Root.ID == "" {
					printInfo("No members yet")
					printNextStep("Start with", "downline member init --owner "+*owner)
					return nil
				}
				printTable([]string{"ID", "Name", "Level", "Capital", "Parent", "Downlines"}, memberRows(t))
				printStats(t.Len(), false)
				return nil
			})
		},
	}
}

// memberRows lists every member of t in display order. The downline column
// counts direct children against the group limit; third-level members have
// no group.
func memberRows(t *tree.Tree) [][]string {
	var rows [][]string
	t.Walk(func(m tree.Member, lvl tree.Level, parentID string) bool {
		name := levelStyle(lvl).Render(m.Name)
		downlines := ""
		if lvl < tree.LevelThird {
			downlines = fmt.Sprintf("%d/%d", len(t.ChildrenOf(m.ID)), tree.MaxGroupSize)
		}
		capital := ""
		if lvl != tree.LevelRoot {
			capital = sink.FormatCapital(m.Capital)
		}
		rows = append(rows, []string{m.ID, name, lvl.String(), capital, parentID, downlines})
		return true
	})
	return rows
}

func (c *CLI) memberExportCommand(owner *string) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the owner's tree as a snapshot file",
		Long: `Write the owner's tree as a JSON snapshot that render, layout and browse
can read. Without -o the snapshot goes to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd, func(svc *downline.Service) error {
				t, err := svc.Snapshot(cmd.Context(), *owner)
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(t, "", "  ")
				if err != nil {
					return fmt.Errorf("encode snapshot: %w", err)
				}
				data = append(data, '\n')

				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := writeFile(output, data); err != nil {
					return err
				}
				printSuccess("Exported %d members", t.Len())
				printFile(output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}
