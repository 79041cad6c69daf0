package blocks

import (
	"time"

	ba "github.com/drpcorg/blockarena"
	"github.com/drpcorg/blockarena/protocol"
)

type Chat struct {
	Channels []ba.Handle[*ChatChannel]
}

func (c *Chat) Kind() ba.Kind { return KindChat }

func (c *Chat) Release() {
	c.Channels = releaseAll(c.Channels)
}

func (c *Chat) Pack(p *ba.Packer) protocol.Value {
	return protocol.Object{"channels": ba.PackHandles(p, c.Channels)}
}

func (c *Chat) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindChat, v)
	c.Channels = handles[*ChatChannel](f, u, "channels")
	return f.err
}

type ChatChannel struct {
	Name     string
	Messages []ba.Handle[*Message]
}

func (c *ChatChannel) Kind() ba.Kind { return KindChatChannel }

func (c *ChatChannel) Release() {
	c.Messages = releaseAll(c.Messages)
}

func (c *ChatChannel) Pack(p *ba.Packer) protocol.Value {
	return protocol.Object{
		"name":     c.Name,
		"messages": ba.PackHandles(p, c.Messages),
	}
}

func (c *ChatChannel) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindChatChannel, v)
	c.Name = f.str("name")
	c.Messages = handles[*Message](f, u, "messages")
	return f.err
}

// Post stores a message and appends it to the channel.
func Post(a *ba.Arena, channel ba.Handle[*ChatChannel], msg *Message) (ba.Handle[*Message], error) {
	h := ba.Insert(a, msg)
	if err := channel.Update(func(c *ChatChannel) { c.Messages = append(c.Messages, h.Clone()) }); err != nil {
		h.Release()
		return ba.Handle[*Message]{}, err
	}
	return h, nil
}

type Sender struct {
	ClientID string
	Name     string
}

// Message is a chat line. Replies may point back up the thread, so a
// message graph can be cyclic.
type Message struct {
	Sender    Sender
	Text      string
	CreatedAt time.Time
	Replies   []ba.Handle[*Message]
}

func (m *Message) Kind() ba.Kind { return KindMessage }

func (m *Message) Release() {
	m.Replies = releaseAll(m.Replies)
}

func (m *Message) Pack(p *ba.Packer) protocol.Value {
	return protocol.Object{
		"sender": protocol.Object{
			"client_id": m.Sender.ClientID,
			"name":      m.Sender.Name,
		},
		"text":       m.Text,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"replies":    ba.PackHandles(p, m.Replies),
	}
}

func (m *Message) Unpack(v protocol.Value, u *ba.Unpacker) error {
	f := readFields(KindMessage, v)
	sender := readFields(KindMessage, f.value("sender"))
	m.Sender.ClientID = sender.str("client_id")
	m.Sender.Name = sender.str("name")
	if sender.err != nil {
		f.fail("sender")
	}
	m.Text = f.str("text")
	var err error
	if m.CreatedAt, err = time.Parse(time.RFC3339Nano, f.str("created_at")); err != nil {
		f.fail("created_at")
	}
	m.Replies = handles[*Message](f, u, "replies")
	return f.err
}
