package webhook

// Event is one normalized inbound gateway record.
type Event interface {
	Kind() string
}

// Message is a normalized messages.upsert record.
type Message struct {
	Instance    string
	RemoteJID   string
	FromMe      bool
	MessageID   string
	Participant string
	PushName    string
	MessageType string
	Text        string
	Timestamp   int64
	Source      string
	Status      string
}

func (Message) Kind() string { return "messages.upsert" }

// ContactUpdate is a normalized contacts.update record.
type ContactUpdate struct {
	Instance      string
	RemoteJID     string
	PushName      string
	ProfilePicURL string
}

func (ContactUpdate) Kind() string { return "contacts.update" }

// PresenceUpdate is one participant's presence inside a chat.
type PresenceUpdate struct {
	Instance    string
	ChatID      string
	Participant string
	Presence    string
}

func (PresenceUpdate) Kind() string { return "presence.update" }

// ChatUpdate covers both chats.update and chats.upsert; Raw keeps the
// original item for fields not mapped yet.
type ChatUpdate struct {
	Event    string
	Instance string
	ChatID   string
	Name     string
	Raw      map[string]any
}

func (c ChatUpdate) Kind() string { return c.Event }

// Normalizer converts a raw webhook body into zero or more internal
// records. Unknown shapes normalize to nothing, never to an error.
type Normalizer func(body map[string]any) []Event

// Normalizers is the per-event-name registry the router dispatches on.
func Normalizers() map[string]Normalizer {
	return map[string]Normalizer{
		"messages.upsert": normalizeMessagesUpsert,
		"contacts.update": normalizeContactsUpdate,
		"presence.update": normalizePresenceUpdate,
		"chats.update":    normalizeChatsUpdate,
		"chats.upsert":    normalizeChatsUpsert,
	}
}

func normalizeMessagesUpsert(body map[string]any) []Event {
	data := asMap(body["data"])
	key := asMap(data["key"])

	msg := Message{
		Instance:    str(body["instance"]),
		RemoteJID:   str(key["remoteJid"]),
		FromMe:      boolean(key["fromMe"]),
		MessageID:   str(key["id"]),
		Participant: str(key["participant"]),
		PushName:    str(data["pushName"]),
		MessageType: str(data["messageType"]),
		Timestamp:   integer(data["messageTimestamp"]),
		Source:      str(data["source"]),
		Status:      str(data["status"]),
	}
	if msg.MessageType == "" {
		msg.MessageType = "unknown"
	}
	if m := asMap(data["message"]); m != nil {
		msg.Text = str(m["conversation"])
	}

	return []Event{msg}
}

func normalizeContactsUpdate(body map[string]any) []Event {
	instance := str(body["instance"])

	var out []Event
	for _, raw := range asList(body["data"]) {
		item := asMap(raw)
		out = append(out, ContactUpdate{
			Instance:      instance,
			RemoteJID:     str(item["remoteJid"]),
			PushName:      str(item["pushName"]),
			ProfilePicURL: str(item["profilePicUrl"]),
		})
	}
	return out
}

func normalizePresenceUpdate(body map[string]any) []Event {
	instance := str(body["instance"])
	data := asMap(body["data"])
	chatID := str(data["id"])

	var out []Event
	for participant, raw := range asMap(data["presences"]) {
		info := asMap(raw)
		presence := str(info["lastKnownPresence"])
		if presence == "" {
			presence = "unknown"
		}
		out = append(out, PresenceUpdate{
			Instance:    instance,
			ChatID:      chatID,
			Participant: participant,
			Presence:    presence,
		})
	}
	return out
}

func normalizeChatsUpdate(body map[string]any) []Event {
	instance := str(body["instance"])

	var out []Event
	for _, raw := range asList(body["data"]) {
		item := asMap(raw)
		out = append(out, ChatUpdate{
			Event:    "chats.update",
			Instance: instance,
			ChatID:   str(item["remoteJid"]),
			Raw:      item,
		})
	}
	return out
}

func normalizeChatsUpsert(body map[string]any) []Event {
	instance := str(body["instance"])

	var out []Event
	for _, raw := range asList(body["data"]) {
		item := asMap(raw)
		out = append(out, ChatUpdate{
			Event:    "chats.upsert",
			Instance: instance,
			ChatID:   str(item["id"]),
			Name:     str(item["name"]),
			Raw:      item,
		})
	}
	return out
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asList accepts both a JSON array and a single object, the gateway
// sends either depending on the event.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

func integer(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	}
	return 0
}
