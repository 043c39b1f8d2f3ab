package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"postdesk/cmd/postdesk/ui"
	"postdesk/internal/api"
)

var (
	postsCategory  string
	postTitle      string
	postContent    string
	postCategoryID int64
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories",
	RunE:  withApp(runCategories),
}

// postsCmd groups the post subcommands
var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List, show, create, edit and delete posts",
}

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts",
	Long: `Lists posts, optionally only those in one category.

Example:
  postdesk posts list --category News`,
	RunE: withApp(runPostsList),
}

var postsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a post with its content rendered as markdown",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runPostsShow),
}

var postsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a post (requires login)",
	Long: `Creates a post. Title, content and category are required.

Example:
  postdesk posts create --title "Hello" --content "First post" --category-id 1`,
	RunE: withApp(runPostsCreate),
}

var postsEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a post (requires login)",
	Long: `Loads the post, applies the given flags on top of it, and saves it.
Fields without a flag keep their current value; the current category is
resolved from the post's category name.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runPostsEdit),
}

var postsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a post (requires login)",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runPostsDelete),
}

func init() {
	postsListCmd.Flags().StringVar(&postsCategory, "category", "", "Only posts in this category")

	for _, c := range []*cobra.Command{postsCreateCmd, postsEditCmd} {
		c.Flags().StringVarP(&postTitle, "title", "t", "", "Post title")
		c.Flags().StringVar(&postContent, "content", "", "Post content (markdown)")
		c.Flags().Int64Var(&postCategoryID, "category-id", 0, "Category id")
	}

	postsCmd.AddCommand(postsListCmd, postsShowCmd, postsCreateCmd, postsEditCmd, postsDeleteCmd)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", arg)
	}
	return id, nil
}

func runCategories(a *app, cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a.sessions.Restore(ctx)

	cats, err := a.content.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	if len(cats) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), a.styles.Muted.Render("No categories."))
		return nil
	}

	table := ui.NewTable("Categories", "ID", "Name", "Description")
	for _, c := range cats {
		table.AddRow(strconv.FormatInt(c.ID, 10), c.Name, c.Description)
	}
	fmt.Fprint(cmd.OutOrStdout(), table.View(a.styles))
	return nil
}

func runPostsList(a *app, cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a.sessions.Restore(ctx)

	posts, err := a.content.ListPosts(ctx, postsCategory)
	if err != nil {
		return fmt.Errorf("failed to load posts: %w", err)
	}
	if len(posts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), a.styles.Muted.Render("No posts."))
		return nil
	}

	table := ui.NewTable("Posts", "ID", "Title", "Category")
	for _, p := range posts {
		table.AddRow(strconv.FormatInt(p.ID, 10), p.Title, p.CategoryName)
	}
	fmt.Fprint(cmd.OutOrStdout(), table.View(a.styles))
	return nil
}

func runPostsShow(a *app, cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	a.sessions.Restore(ctx)

	post, err := a.content.GetPost(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load post: %w", err)
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", post.Title)
	if post.CategoryName != "" {
		fmt.Fprintf(&md, "_%s_\n\n", post.CategoryName)
	}
	md.WriteString(post.Content)

	out := md.String()
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		if rendered, rerr := renderer.Render(out); rerr == nil {
			out = rendered
		} else {
			logger.Debug("markdown render failed", zap.Error(rerr))
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

func runPostsCreate(a *app, cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	draft := api.Draft{Title: postTitle, Content: postContent, CategoryID: postCategoryID}
	created, err := a.content.CreatePost(ctx, draft)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	msg := "Post created"
	if created != nil {
		msg = fmt.Sprintf("Post %d created", created.ID)
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.styles.Success.Render(msg))
	return nil
}

func runPostsEdit(a *app, cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	draft, _, err := a.content.EditDraft(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load post: %w", err)
	}
	if postTitle != "" {
		draft.Title = postTitle
	}
	if postContent != "" {
		draft.Content = postContent
	}
	if postCategoryID != 0 {
		draft.CategoryID = postCategoryID
	}

	if err := a.content.UpdatePost(ctx, id, draft); err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.styles.Success.Render(fmt.Sprintf("Post %d updated", id)))
	return nil
}

func runPostsDelete(a *app, cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	if _, err := a.requireSession(ctx); err != nil {
		return err
	}

	if err := a.content.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.styles.Success.Render(fmt.Sprintf("Post %d deleted", id)))
	return nil
}
