package channel

import (
	"testing"
)

func TestParseMessage(t *testing.T) {
	t.Run("valid envelope", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"action":"say","target":"TXT","to":"abc","text":"hi"}`))
		if err != nil {
			t.Fatalf("Failed to parse valid envelope: %v", err)
		}
		if msg.Action != ActionSay {
			t.Errorf("Expected action say, got %s", msg.Action)
		}
		if msg.Target != TargetTXT {
			t.Errorf("Expected target TXT, got %s", msg.Target)
		}
		if msg.To != "abc" || msg.Text != "hi" {
			t.Errorf("Unexpected fields: %+v", msg)
		}
	})

	t.Run("action verb is case-insensitive", func(t *testing.T) {
		msg, err := ParseMessage([]byte(`{"action":"SAY","target":"TXT"}`))
		if err != nil {
			t.Fatalf("Uppercase verb should parse: %v", err)
		}
		if msg.Action != ActionSay {
			t.Errorf("Expected normalized action say, got %s", msg.Action)
		}

		msg, err = ParseMessage([]byte(`{"action":"Set","target":"DATA"}`))
		if err != nil {
			t.Fatalf("Mixed-case verb should parse: %v", err)
		}
		if msg.Action != ActionSet {
			t.Errorf("Expected normalized action set, got %s", msg.Action)
		}
	})

	t.Run("unknown verb rejected", func(t *testing.T) {
		if _, err := ParseMessage([]byte(`{"action":"shout","target":"TXT"}`)); err == nil {
			t.Error("Expected error for unknown action verb")
		}
	})

	t.Run("missing target rejected", func(t *testing.T) {
		if _, err := ParseMessage([]byte(`{"action":"say"}`)); err == nil {
			t.Error("Expected error for missing target")
		}
	})

	t.Run("malformed JSON rejected", func(t *testing.T) {
		if _, err := ParseMessage([]byte(`{"action":`)); err == nil {
			t.Error("Expected error for malformed JSON")
		}
	})
}

func TestMessage_Transforms(t *testing.T) {
	orig := Message{Action: ActionSet, Target: TargetSTATE, From: "admin-1", To: "player-1", Text: "x"}

	t.Run("AsSay rewrites the verb only", func(t *testing.T) {
		out := orig.AsSay()
		if out.Action != ActionSay {
			t.Errorf("Expected say, got %s", out.Action)
		}
		if out.Target != orig.Target || out.From != orig.From || out.To != orig.To {
			t.Errorf("AsSay changed more than the verb: %+v", out)
		}
		if orig.Action != ActionSet {
			t.Error("AsSay mutated the original message")
		}
	})

	t.Run("Anonymized strips the sender", func(t *testing.T) {
		out := orig.Anonymized()
		if out.From != "" {
			t.Errorf("Expected empty From, got %s", out.From)
		}
		if orig.From != "admin-1" {
			t.Error("Anonymized mutated the original message")
		}
	})

	t.Run("Forwarded re-addresses", func(t *testing.T) {
		out := orig.Forwarded("player-2")
		if out.To != "player-2" {
			t.Errorf("Expected player-2, got %s", out.To)
		}
		if orig.To != "player-1" {
			t.Error("Forwarded mutated the original message")
		}
	})
}

func TestMessage_WithData(t *testing.T) {
	msg := Say(TargetPLIST, "", RecipientAll).WithData(map[string]int{"size": 3})
	if string(msg.Data) != `{"size":3}` {
		t.Errorf("Unexpected data payload: %s", msg.Data)
	}
}

func TestSayText(t *testing.T) {
	msg := SayText("", "player-1", "hello")
	if msg.Action != ActionSay || msg.Target != TargetTXT {
		t.Errorf("Unexpected envelope: %+v", msg)
	}
	if msg.To != "player-1" || msg.Text != "hello" {
		t.Errorf("Unexpected addressing: %+v", msg)
	}
}

func TestMessage_Encode(t *testing.T) {
	msg := SayText("a", "b", "c")
	raw, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	back, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("Encoded envelope should parse: %v", err)
	}
	if back.Action != msg.Action || back.Target != msg.Target ||
		back.From != msg.From || back.To != msg.To || back.Text != msg.Text {
		t.Errorf("Round trip mismatch: %+v vs %+v", back, msg)
	}
}
