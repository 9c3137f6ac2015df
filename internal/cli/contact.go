package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Omashka/circles-sub001/internal/models"
)

var (
	contactAddInterests string
	contactAddBirthday  string
)

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manage contacts",
	Long: `Manage the people circles tracks.

Examples:
  circles contact add "Sarah Miller" --interests "coffee,design"
  circles contact list
  circles contact show <id>`,
}

var contactAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a contact",
	Args:  cobra.ExactArgs(1),
	RunE:  runContactAdd,
}

var contactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	RunE:  runContactList,
}

var contactShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a contact's profile and interactions",
	Args:  cobra.ExactArgs(1),
	RunE:  runContactShow,
}

func init() {
	contactAddCmd.Flags().StringVarP(&contactAddInterests, "interests", "i", "", "comma-separated interests")
	contactAddCmd.Flags().StringVarP(&contactAddBirthday, "birthday", "b", "", "birthday as YYYY-MM-DD")

	contactCmd.AddCommand(contactAddCmd)
	contactCmd.AddCommand(contactListCmd)
	contactCmd.AddCommand(contactShowCmd)
}

func runContactAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	contact := models.Contact{
		ID:   uuid.New().String(),
		Name: args[0],
	}
	if contactAddInterests != "" {
		for _, s := range strings.Split(contactAddInterests, ",") {
			if s = strings.TrimSpace(s); s != "" {
				contact.Interests = append(contact.Interests, s)
			}
		}
	}
	if contactAddBirthday != "" {
		var d models.Date
		if err := d.UnmarshalJSON([]byte(`"` + contactAddBirthday + `"`)); err != nil {
			return fmt.Errorf("invalid birthday: %w", err)
		}
		contact.Birthday = &d
	}

	if err := contacts.SaveContact(ctx, contact); err != nil {
		return fmt.Errorf("save contact: %w", err)
	}

	fmt.Println(defaultTheme.successStyle().Render("✓ Contact added"))
	fmt.Printf("  ID: %s\n", contact.ID)
	return nil
}

func runContactList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	list, err := contacts.ListContacts(ctx)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}

	if len(list) == 0 {
		fmt.Println("No contacts yet.")
		return nil
	}

	fmt.Printf("Contacts (%d):\n\n", len(list))
	for _, c := range list {
		fmt.Printf("- %s\n", c.Name)
		if verbose {
			fmt.Printf("  ID: %s\n", c.ID)
			if len(c.Interests) > 0 {
				fmt.Printf("  Interests: %s\n", strings.Join(c.Interests, ", "))
			}
		}
	}
	return nil
}

func runContactShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	contact, err := contacts.GetContact(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load contact: %w", err)
	}

	fmt.Println(defaultTheme.statusStyle().Render(contact.Name))
	if contact.WorkInfo != "" {
		fmt.Printf("  Work: %s\n", contact.WorkInfo)
	}
	if contact.FamilyDetails != "" {
		fmt.Printf("  Family: %s\n", contact.FamilyDetails)
	}
	if contact.TravelNotes != "" {
		fmt.Printf("  Travel: %s\n", contact.TravelNotes)
	}
	if contact.Birthday != nil {
		fmt.Printf("  Birthday: %s\n", contact.Birthday)
	}
	if len(contact.Interests) > 0 {
		fmt.Printf("  Interests: %s\n", strings.Join(contact.Interests, ", "))
	}
	if len(contact.TopicsToAvoid) > 0 {
		fmt.Printf("  Topics to avoid: %s\n", strings.Join(contact.TopicsToAvoid, ", "))
	}
	if len(contact.ReligiousEvents) > 0 {
		fmt.Printf("  Religious events: %s\n", strings.Join(contact.ReligiousEvents, ", "))
	}

	interactions, err := contacts.Interactions(ctx, contact.ID)
	if err != nil {
		return fmt.Errorf("load interactions: %w", err)
	}
	if len(interactions) > 0 {
		fmt.Printf("\nInteractions (%d):\n", len(interactions))
		for _, in := range interactions {
			text := in.Summary
			if text == "" {
				text = defaultTheme.hintStyle().Render("(unprocessed) ") + in.RawInput
			}
			fmt.Printf("- [%s] %s\n", in.Source, text)
		}
	}
	return nil
}
