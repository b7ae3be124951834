// Command scale-users manages the user profiles the daemon attributes
// measurements to.
//
// Usage: scale-users [-profiles users.json] <command> [options]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/scale.report/internal/fsutil"
	"github.com/banshee-data/scale.report/internal/metrics"
	"github.com/banshee-data/scale.report/internal/profile"
)

var profilesPath = flag.String("profiles", "users.json", "Path to the user profiles JSON file")

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	store := profile.NewStore(fsutil.OSFileSystem{}, *profilesPath)
	if err := store.Reload(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load %s: %v\n", *profilesPath, err)
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "list":
		handleList(store)
	case "show":
		handleShow(store, args)
	case "add":
		handleAdd(store, args)
	case "update":
		handleUpdate(store, args)
	case "delete":
		handleDelete(store, args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`scale-users - manage smart scale user profiles

Usage: scale-users [-profiles users.json] <command> [options]

Commands:
  list       List all profiles
  show       Show one profile: show <username>
  add        Add a profile
  update     Update fields on an existing profile
  delete     Delete a profile: delete <username> [--force]
  help       Show this help message

Add/update flags:
  --username <name>      Profile key, must be unique (required for add)
  --name <display name>  Human-readable name (defaults to username)
  --height <cm>          Height in centimeters
  --sex <male|female>    Sex for the body composition formulas
  --birthdate <date>     Birthdate as YYYY-MM-DD (preferred over --age)
  --age <years>          Fixed age, for profiles without a birthdate

Examples:
  scale-users add --username alice --name Alice --height 165 --sex female --birthdate 1990-03-20
  scale-users update --username alice --height 166
  scale-users delete alice --force`)
}

func handleList(store *profile.Store) {
	profiles := store.All()
	if len(profiles) == 0 {
		fmt.Println("No profiles defined")
		return
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tNAME\tHEIGHT\tSEX\tAGE\tBIRTHDATE")
	for _, p := range profiles {
		birthdate := "-"
		if !p.Birthdate.IsZero() {
			birthdate = p.Birthdate.Format(profile.BirthdateLayout)
		}
		fmt.Fprintf(w, "%s\t%s\t%dcm\t%s\t%d\t%s\n",
			p.Username, p.DisplayName, p.HeightCm, p.Sex, p.AgeAt(now), birthdate)
	}
	w.Flush()
}

func handleShow(store *profile.Store, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: scale-users show <username>")
		os.Exit(1)
	}
	p, ok := store.Get(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no profile named %q\n", args[0])
		os.Exit(1)
	}

	fmt.Printf("Username:     %s\n", p.Username)
	fmt.Printf("Display name: %s\n", p.DisplayName)
	fmt.Printf("Height:       %d cm\n", p.HeightCm)
	fmt.Printf("Sex:          %s\n", p.Sex)
	if !p.Birthdate.IsZero() {
		fmt.Printf("Birthdate:    %s\n", p.Birthdate.Format(profile.BirthdateLayout))
	}
	fmt.Printf("Age:          %d\n", p.AgeAt(time.Now()))
}

type profileFlags struct {
	fs        *flag.FlagSet
	username  *string
	name      *string
	height    *int
	sex       *string
	birthdate *string
	age       *int
}

func newProfileFlags(name string) profileFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return profileFlags{
		fs:        fs,
		username:  fs.String("username", "", "Profile key"),
		name:      fs.String("name", "", "Display name"),
		height:    fs.Int("height", 0, "Height in centimeters"),
		sex:       fs.String("sex", "", "male or female"),
		birthdate: fs.String("birthdate", "", "Birthdate as YYYY-MM-DD"),
		age:       fs.Int("age", 0, "Fixed age in years"),
	}
}

func handleAdd(store *profile.Store, args []string) {
	f := newProfileFlags("add")
	f.fs.Parse(args)

	if *f.username == "" {
		fmt.Fprintln(os.Stderr, "Error: --username is required")
		os.Exit(1)
	}

	p := profile.Profile{
		Username:    *f.username,
		DisplayName: *f.name,
		HeightCm:    *f.height,
		StoredAge:   *f.age,
	}
	if p.DisplayName == "" {
		p.DisplayName = p.Username
	}
	if err := applyFlags(&p, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := store.Add(p, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Added profile %q\n", p.Username)
}

func handleUpdate(store *profile.Store, args []string) {
	f := newProfileFlags("update")
	f.fs.Parse(args)

	if *f.username == "" {
		fmt.Fprintln(os.Stderr, "Error: --username is required")
		os.Exit(1)
	}
	p, ok := store.Get(*f.username)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no profile named %q\n", *f.username)
		os.Exit(1)
	}

	// Only the flags the user passed change the profile.
	if *f.name != "" {
		p.DisplayName = *f.name
	}
	if *f.height != 0 {
		p.HeightCm = *f.height
	}
	if *f.age != 0 {
		p.StoredAge = *f.age
		p.Birthdate = time.Time{}
	}
	if err := applyFlags(&p, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := store.Update(p, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated profile %q\n", p.Username)
}

// applyFlags folds the sex and birthdate flags into the profile.
func applyFlags(p *profile.Profile, f profileFlags) error {
	if *f.sex != "" {
		sex, err := metrics.ParseSex(*f.sex)
		if err != nil {
			return err
		}
		p.Sex = sex
	}
	if *f.birthdate != "" {
		birthdate, err := time.Parse(profile.BirthdateLayout, *f.birthdate)
		if err != nil {
			return fmt.Errorf("invalid birthdate %q, want YYYY-MM-DD", *f.birthdate)
		}
		p.Birthdate = birthdate
		p.StoredAge = 0
	}
	return nil
}

func handleDelete(store *profile.Store, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	force := fs.Bool("force", false, "Skip the confirmation prompt")

	var username string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		username = args[0]
		args = args[1:]
	}
	fs.Parse(args)

	if username == "" {
		fmt.Fprintln(os.Stderr, "Usage: scale-users delete <username> [--force]")
		os.Exit(1)
	}
	if _, ok := store.Get(username); !ok {
		fmt.Fprintf(os.Stderr, "Error: no profile named %q\n", username)
		os.Exit(1)
	}

	if !*force {
		fmt.Printf("Delete profile %q? Existing measurements keep the name. [y/N] ", username)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Aborted")
			return
		}
	}

	if err := store.Delete(username); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted profile %q\n", username)
}
