package device

import (
	"fmt"
	"sort"
)

// PrintDictionary prints a summary of the dictionary to stdout.
func (d *Device) PrintDictionary() {
	if d.dictionary == nil {
		fmt.Println("No dictionary loaded")
		return
	}

	fmt.Println("=== Device Dictionary ===")
	fmt.Printf("Version: %s\n", d.dictionary.Version)
	fmt.Printf("Build: %s\n", d.dictionary.BuildVersions)

	if len(d.dictionary.Config) > 0 {
		fmt.Println("\nConfig:")
		for _, k := range sortedKeys(d.dictionary.Config) {
			fmt.Printf("  %s = %s\n", k, d.dictionary.Config[k])
		}
	}

	fmt.Printf("\nCommands (%d):\n", len(d.dictionary.Commands))
	printTable(d.dictionary.Commands)

	fmt.Printf("\nResponses (%d):\n", len(d.dictionary.Responses))
	printTable(d.dictionary.Responses)

	if len(d.dictionary.Enumerations) > 0 {
		fmt.Printf("\nEnumerations (%d):\n", len(d.dictionary.Enumerations))
		for name, values := range d.dictionary.Enumerations {
			fmt.Printf("  %s: %d values\n", name, len(values))
		}
	}

	fmt.Println("=========================")
}

func printTable(table map[string]int) {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return table[names[i]] < table[names[j]]
	})
	for _, name := range names {
		fmt.Printf("  [%d] %s\n", table[name], name)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
