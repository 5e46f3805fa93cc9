package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage the tag registry",
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags and their keywords",
	RunE:  runTagList,
}

var tagSetCmd = &cobra.Command{
	Use:   "set [name] [keyword...]",
	Short: "Create or replace a tag",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagSet,
}

var tagRmCmd = &cobra.Command{
	Use:   "rm [name]",
	Short: "Delete a tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagRm,
}

func init() {
	tagCmd.AddCommand(tagListCmd, tagSetCmd, tagRmCmd)
}

func runTagList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tags")
	if err != nil {
		return err
	}

	var tags map[string][]string
	if err := json.Unmarshal(resp, &tags); err != nil {
		return err
	}

	if len(tags) == 0 {
		fmt.Println("No tags defined")
		return nil
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tKEYWORDS")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(tags[name], ", "))
	}
	w.Flush()
	return nil
}

func runTagSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	body := map[string][]string{"keywords": args[1:]}

	if _, err := apiSend(http.MethodPut, "/tags/"+name, body); err != nil {
		return err
	}
	fmt.Printf("Set tag %s\n", name)
	return nil
}

func runTagRm(cmd *cobra.Command, args []string) error {
	if _, err := apiSend(http.MethodDelete, "/tags/"+args[0], nil); err != nil {
		return err
	}
	fmt.Printf("Deleted tag %s\n", args[0])
	return nil
}
