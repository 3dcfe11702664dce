package core

// UncategorizedName labels expenses without a category in breakdowns.
const UncategorizedName = "Other"

// DemoUser is seeded by the initial migration and used as the default
// identity by local tooling. It is never consulted implicitly by services.
var DemoUser = User{
	ID:    "demo-user-1",
	Name:  "John Doe",
	Email: "john@example.com",
	Image: "/placeholder-user.jpg",
}

var defaultCategories = []Category{
	{Name: "Food", Icon: "🍔", Color: "#FF6B6B"},
	{Name: "Transport", Icon: "🚗", Color: "#4ECDC4"},
	{Name: "Entertainment", Icon: "🎬", Color: "#45B7D1"},
	{Name: "Shopping", Icon: "🛍️", Color: "#96CEB4"},
	{Name: "Utilities", Icon: "💡", Color: "#FFEAA7"},
	{Name: "Health", Icon: "🏥", Color: "#DDA0DD"},
	{Name: "Income", Icon: "💰", Color: "#98D8C8"},
}

// DefaultCategories returns the seed set tagged with userID.
func DefaultCategories(userID string) []Category {
	out := make([]Category, len(defaultCategories))
	for i, c := range defaultCategories {
		c.UserID = userID
		out[i] = c
	}
	return out
}
