package game

import (
	"math/rand"
	"strconv"
)

const HandSize = 7

var defaultSituations = []string{
	"When you finally fix the bug and realize it was a typo all along",
	"Your face when the group project is due tomorrow and nobody has started",
	"When someone says they don't like pineapple on pizza",
	"Monday morning after a three-day weekend",
	"When the Wi-Fi drops right before you hit save",
	"Trying to act normal after waving at someone who wasn't waving at you",
	"When your mom says 'we have food at home'",
	"The moment you realize you've been on mute the whole meeting",
	"When the teacher says 'this will be on the test'",
	"Opening the fridge for the fifth time hoping something new appeared",
	"When your code works on the first try and you don't know why",
	"Seeing your ex at the grocery store in your worst outfit",
	"When the delivery app says your food is 2 minutes away for 20 minutes",
	"Your reaction when someone spoils the season finale",
	"When you hear your own voice on a recording",
	"Trying to leave a party without saying goodbye to everyone",
	"When the boss says 'quick call?' at 4:55 on a Friday",
	"When autocorrect changes your message to something embarrassing",
	"Realizing you've been pushing a door that says pull",
	"When you find money in last winter's jacket",
}

var defaultCardNames = []string{
	"distracted-boyfriend.jpg", "drake-hotline-bling.jpg", "this-is-fine.jpg",
	"woman-yelling-at-cat.jpg", "surprised-pikachu.png", "expanding-brain.jpg",
	"two-buttons.jpg", "change-my-mind.jpg", "hide-the-pain-harold.jpg",
	"is-this-a-pigeon.jpg", "roll-safe.jpg", "success-kid.jpg",
	"disaster-girl.jpg", "blinking-white-guy.gif", "mocking-spongebob.jpg",
	"gru-plan.jpg", "uno-draw-25.jpg", "left-exit-12.jpg",
	"panik-kalm-panik.png", "stonks.jpg", "galaxy-brain.jpg",
	"evil-kermit.jpg", "one-does-not-simply.jpg", "ancient-aliens.jpg",
	"bernie-mittens.jpg", "confused-math-lady.jpg", "monkey-puppet.jpg",
	"sad-pablo-escobar.jpg", "spiderman-pointing.jpg", "trade-offer.jpg",
	"waiting-skeleton.jpg", "always-has-been.png", "batman-slapping-robin.jpg",
	"bad-luck-brian.jpg", "futurama-fry.jpg", "grumpy-cat.jpg",
	"kombucha-girl.jpg", "leonardo-cheers.jpg", "math-is-math.jpg",
	"running-away-balloon.jpg", "sweating-jordan-peele.jpg", "they-dont-know.png",
	"we-are-not-the-same.jpg", "buff-doge-vs-cheems.png", "crying-cat.jpg",
	"anakin-padme.jpg", "epic-handshake.jpg", "guy-holding-cardboard-sign.jpg",
}

// Content is the pool of situations and cards a lobby plays with.
type Content struct {
	Situations []string
	Cards      []Card
}

func DefaultContent() Content {
	cards := make([]Card, len(defaultCardNames))
	for i, name := range defaultCardNames {
		cards[i] = Card{ID: "card-" + strconv.Itoa(i+1), Name: name}
	}
	situations := make([]string, len(defaultSituations))
	copy(situations, defaultSituations)
	return Content{Situations: situations, Cards: cards}
}

// deck deals cards and situations without repeats until a pool runs dry,
// then reshuffles. Not safe for concurrent use; Session guards it.
type deck struct {
	content    Content
	cards      []Card
	situations []string
}

func newDeck(c Content) *deck {
	d := &deck{content: c}
	d.reshuffleCards()
	d.reshuffleSituations()
	return d
}

func (d *deck) reshuffleCards() {
	d.cards = make([]Card, len(d.content.Cards))
	copy(d.cards, d.content.Cards)
	rand.Shuffle(len(d.cards), func(i, j int) { d.cards[i], d.cards[j] = d.cards[j], d.cards[i] })
}

func (d *deck) reshuffleSituations() {
	d.situations = make([]string, len(d.content.Situations))
	copy(d.situations, d.content.Situations)
	rand.Shuffle(len(d.situations), func(i, j int) { d.situations[i], d.situations[j] = d.situations[j], d.situations[i] })
}

func (d *deck) drawSituation() string {
	if len(d.situations) == 0 {
		d.reshuffleSituations()
		if len(d.situations) == 0 {
			return ""
		}
	}
	s := d.situations[0]
	d.situations = d.situations[1:]
	return s
}

// fill tops hand up to HandSize, avoiding cards already held.
func (d *deck) fill(hand []Card) []Card {
	held := make(map[string]bool, len(hand))
	for _, c := range hand {
		held[c.ID] = true
	}
	reshuffled := false
	for len(hand) < HandSize {
		if len(d.cards) == 0 {
			if reshuffled {
				break
			}
			d.reshuffleCards()
			reshuffled = true
			if len(d.cards) == 0 {
				break
			}
		}
		c := d.cards[0]
		d.cards = d.cards[1:]
		if held[c.ID] {
			continue
		}
		held[c.ID] = true
		hand = append(hand, c)
	}
	return hand
}
