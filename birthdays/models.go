package birthdays

// Client is one active client whose birthday falls on the reference day.
type Client struct {
	ID       string
	Name     string
	RawPhone string
}
