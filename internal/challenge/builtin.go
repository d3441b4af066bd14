package challenge

import "github.com/jason-s-yu/codearena/internal/models"

// Builtin is the catalog shipped with the server when no CHALLENGES_FILE is set.
func Builtin() []models.Challenge {
	return []models.Challenge{
		{
			ID:           "1",
			Title:        "Python Variables Challenge",
			Difficulty:   "Beginner",
			Points:       100,
			Description:  "Create variables and perform basic operations.",
			Requirements: "Define three variables and return their sum",
			StarterCode: `# Create three variables: a, b, c
# Assign them values: 5, 10, 15
# Return their sum

def solve_challenge():
    # Your code here
    return "Hello, World!"`,
			Checks: []models.Check{
				{Name: "assigns a", Pattern: `\ba\s*=\s*5\b`, Points: 25},
				{Name: "assigns b", Pattern: `\bb\s*=\s*10\b`, Points: 25},
				{Name: "assigns c", Pattern: `\bc\s*=\s*15\b`, Points: 25},
				{Name: "returns the sum", Pattern: `return\s+a\s*\+\s*b\s*\+\s*c\b`, Points: 25},
			},
		},
		{
			ID:           "2",
			Title:        "Functions & Loops Challenge",
			Difficulty:   "Intermediate",
			Points:       200,
			Description:  "Write a function that processes a list.",
			Requirements: "Create a function that doubles each number in a list",
			StarterCode: `# Write a function that takes a list of numbers
# and returns a new list with each number doubled

def solve_challenge():
    # Your code here
    return []
`,
			Checks: []models.Check{
				{Name: "defines a function", Pattern: `def\s+\w+\s*\(`, Points: 50},
				{Name: "loops over the list", Pattern: `for\s+\w+\s+in\s+`, Points: 50},
				{Name: "doubles values", Pattern: `\*\s*2\b|\b2\s*\*`, Points: 50},
				{Name: "returns a list", Pattern: `return\s+[\[\w]`, Points: 50},
			},
		},
		{
			ID:           "3",
			Title:        "Data Structures Challenge",
			Difficulty:   "Advanced",
			Points:       300,
			Description:  "Work with dictionaries and complex data structures.",
			Requirements: "Create a dictionary and manipulate its values",
			StarterCode: `# Create a dictionary and perform operations on it

def solve_challenge():
    # Your code here
    return {}
`,
			Checks: []models.Check{
				{Name: "builds a dictionary", Pattern: `\{\s*['"]?\w+['"]?\s*:`, Points: 100},
				{Name: "updates a key", Pattern: `\w+\[\s*['"]\w+['"]\s*\]\s*=`, Points: 100},
				{Name: "iterates entries", Pattern: `\.(items|keys|values)\(\)`, Points: 50},
				{Name: "returns the dictionary", Pattern: `return\s+\w+`, Points: 50},
			},
		},
	}
}
