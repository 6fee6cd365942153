package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/antonholmquist/jason"
	"github.com/google/uuid"

	"github.com/contentmap/contentmap/mapping"
	"github.com/contentmap/contentmap/registry"
)

var (
	mapFile  = flag.String("f", "items.json", "mapping file to inspect")
	kind     = flag.String("kind", "children", "mapping kind: children or subtree")
	anchor   = flag.String("anchor", "", "external anchor item id")
	manifest = flag.String("config", "contentmap.toml", "TOML manifest for the mappings command")
	usage    = `
maputil <command> <command arguments>

Possible commands:
    list

    item <item id list>

    langs

    templates

    mappings

    verify

    newid
`
)

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}

	switch args[0] {
	case "list":
		dolist(open())
	case "item":
		doitem(open(), args[1:])
	case "langs":
		dolangs(open())
	case "templates":
		dotemplates(open())
	case "mappings":
		domappings(*manifest)
	case "verify":
		doverify(*mapFile)
	case "newid":
		fmt.Printf("{%s}\n", strings.ToUpper(uuid.NewString()))
	default:
		fmt.Println(usage)
	}
}

func open() *mapping.Mapping {
	var layout mapping.Layout
	switch *kind {
	case "subtree":
		layout = mapping.SubtreeLayout{ParentID: mapping.ID(*anchor)}
	default:
		layout = mapping.ChildrenLayout{ItemID: mapping.ID(*anchor)}
	}
	m := &mapping.Mapping{
		Name:   "maputil",
		Path:   *mapFile,
		Layout: layout,
	}
	if err := m.Load(); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	return m
}

func dolist(m *mapping.Mapping) {
	for _, id := range m.GetAllItemIDs() {
		item := m.GetItem(id)
		fmt.Printf("%s  %s\n", id, item.Name)
	}
}

func doitem(m *mapping.Mapping, ids []string) {
	for _, id := range ids {
		item := m.GetItem(mapping.ID(id))
		if item == nil {
			fmt.Printf("%s: no item\n", id)
			continue
		}
		printitem(m, item)
	}
}

func printitem(m *mapping.Mapping, item *mapping.Item) {
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "Item:\t%s\n", item.ID)
	fmt.Fprintf(w, "Name:\t%s\n", item.Name)
	fmt.Fprintf(w, "Template:\t%s\n", item.TemplateID)
	fmt.Fprintf(w, "Parent:\t%s\n", item.ParentID)
	if kids, ok := m.GetChildIDs(item.ID); ok {
		fmt.Fprintf(w, "Children:\t%d\n", len(kids))
	}
	w.Flush()

	fs := item.Fields
	fmt.Println(" Shared")
	printvalues(fs.Shared)
	for _, lang := range fs.Languages() {
		if values := fs.Unversioned[lang]; len(values) > 0 {
			fmt.Printf(" Unversioned [%s]\n", lang)
			printvalues(values)
		}
		uris, _ := m.GetItemVersions(item.ID)
		for _, uri := range uris {
			if uri.Language != lang {
				continue
			}
			fmt.Printf(" Versioned [%s #%d]\n", uri.Language, uri.Version)
			printvalues(fs.Versioned[uri.Language][uri.Version])
		}
	}
}

func printvalues(values mapping.FieldValues) {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Printf("  %s = %s\n", f, values[mapping.FieldID(f)])
	}
}

func dolangs(m *mapping.Mapping) {
	for _, lang := range m.GetLanguages() {
		fmt.Println(lang)
	}
}

func dotemplates(m *mapping.Mapping) {
	for _, id := range m.GetTemplateItemIDs() {
		fmt.Printf("%s  %s\n", id, m.GetItem(id).Name)
	}
}

// domappings loads every mapping in the manifest and prints a summary line
// for each.
func domappings(path string) {
	cfg, err := registry.LoadConfig(path)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	r := registry.New()
	if err := r.OpenFromConfig(cfg, registry.Collaborators{}); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "Name\tItems\tFile\n")
	for _, m := range r.All() {
		fmt.Fprintf(w, "%s\t%d\t%s\n", m.Name, m.Len(), m.FilePath())
	}
	w.Flush()
}

// doverify reads the raw file leniently, so files the strict codec rejects
// can still be diagnosed.
func doverify(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	root, err := jason.NewValueFromBytes(data)
	if err != nil {
		fmt.Println("not JSON:", err.Error())
		os.Exit(1)
	}
	records, err := root.Array()
	if err != nil {
		fmt.Println("top level is not an array:", err.Error())
		os.Exit(1)
	}
	seen := make(map[string]int)
	var count, problems int
	var walk func(records []*jason.Value, depth int)
	walk = func(records []*jason.Value, depth int) {
		for _, rec := range records {
			count++
			obj, err := rec.Object()
			if err != nil {
				fmt.Printf("depth %d: record is not an object\n", depth)
				problems++
				continue
			}
			id, err := obj.GetString("id")
			if err != nil || id == "" {
				fmt.Printf("depth %d: record has no id\n", depth)
				problems++
			} else {
				seen[id]++
			}
			if name, err := obj.GetString("name"); err != nil || name == "" {
				fmt.Printf("depth %d: item %s has no name\n", depth, id)
				problems++
			}
			if kids, err := obj.GetValueArray("children"); err == nil {
				walk(kids, depth+1)
			}
		}
	}
	walk(records, 0)
	for id, n := range seen {
		if n > 1 {
			fmt.Printf("duplicate id %s (%d records)\n", id, n)
			problems++
		}
	}
	fmt.Printf("%d items, %d problems\n", count, problems)
	if problems > 0 {
		os.Exit(1)
	}
}
