package cli

import (
	"context"
	"strings"

	"newsdesk/internal/format"
	"newsdesk/internal/model"
	"newsdesk/internal/mutate"

	"github.com/spf13/cobra"
)

// runWith opens the backend, runs fn and writes its value as the data of the
// output envelope.
func runWith(cmd *cobra.Command, app *App, fn func(ctx context.Context, svc *mutate.Service) (any, error)) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx, app)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer b.Close()
	v, err := fn(ctx, b.svc)
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, map[string]any{"data": v})
}

// tabular returns t for text output and v otherwise.
func tabular(app *App, v any, t format.Tabular) any {
	if app.Format == "text" {
		return t
	}
	return v
}

func newArticlesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "articles",
		Aliases: []string{"a"},
		Short:   "Read and change the article board",
	}
	cmd.AddCommand(
		newArticlesListCmd(app),
		newArticlesArchivedCmd(app),
		newArticlesGetCmd(app),
		newArticlesAddCmd(app),
		newArticlesUpdateCmd(app),
		newArticlesByIDCmd(app, "delete <id>", "Delete an article", func(s *mutate.Service) func(context.Context, int64) (mutate.Result, error) { return s.Delete }),
		newArticlesByIDCmd(app, "archive <id>", "Take an article off the board", func(s *mutate.Service) func(context.Context, int64) (mutate.Result, error) { return s.Archive }),
		newArticlesByIDCmd(app, "activate <id>", "Put an archived article back at the end of the board", func(s *mutate.Service) func(context.Context, int64) (mutate.Result, error) { return s.Reactivate }),
		newArticlesReorderCmd(app),
		newArticlesStatusCmd(app),
		newArticlesColorCmd(app),
		newArticlesCategoryCmd(app),
		newArticlesEditorCmd(app),
		newArticlesHistoryCmd(app),
	)
	return cmd
}

func newArticlesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active articles in board order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				snap, err := svc.Snapshot(ctx)
				if err != nil {
					return nil, err
				}
				return tabular(app, snap, articleTable(snap.Articles)), nil
			})
		},
	}
}

func newArticlesArchivedCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "archived",
		Short: "List archived articles, most recently changed first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				items, err := svc.Archived(ctx)
				if err != nil {
					return nil, err
				}
				return tabular(app, items, articleTable(items)), nil
			})
		},
	}
}

func newArticlesGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				a, err := svc.Get(ctx, id)
				if err != nil {
					return nil, err
				}
				return tabular(app, a, articleTable{a}), nil
			})
		},
	}
}

func newArticlesAddCmd(app *App) *cobra.Command {
	var in mutate.NewArticle
	var category string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an article at the end of the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				in.Category = model.Category(strings.ToUpper(strings.TrimSpace(category)))
				return svc.Insert(ctx, in)
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Headline (required)")
	cmd.Flags().StringVar(&in.Author, "author", "", "Author (required)")
	cmd.Flags().StringVar(&in.Deadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "Category (F|N|O|S)")
	cmd.Flags().StringVar(&in.Editor, "editor", "", "Assigned editor")
	return cmd
}

func newArticlesUpdateCmd(app *App) *cobra.Command {
	var title, author, deadline string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change title, author or deadline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				var p mutate.ArticlePatch
				if cmd.Flags().Changed("title") {
					p.Title = &title
				}
				if cmd.Flags().Changed("author") {
					p.Author = &author
				}
				if cmd.Flags().Changed("deadline") {
					p.Deadline = &deadline
				}
				return svc.Update(ctx, id, p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New headline")
	cmd.Flags().StringVar(&author, "author", "", "New author")
	cmd.Flags().StringVar(&deadline, "deadline", "", "New deadline (YYYY-MM-DD, empty clears)")
	return cmd
}

func newArticlesByIDCmd(app *App, use, short string, op func(*mutate.Service) func(context.Context, int64) (mutate.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return op(svc)(ctx, id)
			})
		},
	}
}

func newArticlesReorderCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Move the given articles to the top, in the given order",
		Long: strings.TrimSpace(`
Move the given articles to the top of the board in the given order. Articles
left out keep their relative order after them. Unknown or archived ids are
ignored.
`),
		Example: strings.TrimSpace(`
newsdesk articles reorder 3 1 2
newsdesk articles reorder 3,1,2
`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				ids, err := parseIDs(args)
				if err != nil {
					return nil, err
				}
				return svc.Reorder(ctx, ids)
			})
		},
	}
}

func newArticlesStatusCmd(app *App) *cobra.Command {
	var who model.Identity
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set the editorial status and record it in the history",
		Example: strings.TrimSpace(`
newsdesk articles status 4 "Needs Edit" --name "Sam Lee" --email sam@example.com
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				return svc.SetStatus(ctx, id, model.Status(args[1]), who)
			})
		},
	}
	cmd.Flags().StringVar(&who.Name, "name", envOr("NEWSDESK_USER_NAME", ""), "Who made the change")
	cmd.Flags().StringVar(&who.Email, "email", envOr("NEWSDESK_USER_EMAIL", ""), "Email of who made the change")
	return cmd
}

func newArticlesColorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "color <id> [white|red|yellow]",
		Short: "Set the status color, or cycle it when no color is given",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				var color model.StatusColor
				if len(args) == 2 {
					color = model.StatusColor(strings.ToLower(strings.TrimSpace(args[1])))
				}
				return svc.SetStatusColor(ctx, id, color)
			})
		},
	}
}

func newArticlesCategoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "category <id> [F|N|O|S]",
		Short: "Set or clear the category",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				var cat model.Category
				if len(args) == 2 {
					cat = model.Category(strings.ToUpper(strings.TrimSpace(args[1])))
				}
				return svc.SetCategory(ctx, id, cat)
			})
		},
	}
}

func newArticlesEditorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "editor <id> [name]",
		Short: "Assign or clear the editor",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				editor := ""
				if len(args) == 2 {
					editor = args[1]
				}
				return svc.SetEditor(ctx, id, editor)
			})
		},
	}
}

func newArticlesHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show status changes, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				id, err := parseID(args[0])
				if err != nil {
					return nil, err
				}
				h, err := svc.StatusHistory(ctx, id)
				if err != nil {
					return nil, err
				}
				return tabular(app, h, historyTable(h)), nil
			})
		},
	}
}

func newResequenceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "resequence",
		Short: "Repair board positions so they run 0..n-1 without gaps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWith(cmd, app, func(ctx context.Context, svc *mutate.Service) (any, error) {
				plan, err := svc.Resequence(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"order":   plan.Order,
					"changes": plan.Changes,
					"changed": plan.Changed(),
				}, nil
			})
		},
	}
}
