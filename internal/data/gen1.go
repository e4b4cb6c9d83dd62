package data

import "fmt"

// Names maps one-byte engine identifiers to display names for one generation.
// Index 0 is reserved for "none" in every table.
type Names struct {
	Species []string
	Moves   []string
	Types   []string

	moveIDs    map[string]uint8
	speciesIDs map[string]uint8
}

// Lookup returns the name tables for gen.
func Lookup(gen Gen) (*Names, error) {
	switch gen {
	case 1:
		return gen1Names, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedGen, gen)
	}
}

// SpeciesName returns the display name of species id, or "" when unknown.
func (n *Names) SpeciesName(id uint8) string {
	if id == 0 || int(id) >= len(n.Species) {
		return ""
	}
	return n.Species[id]
}

// MoveName returns the display name of move id, or "" when unknown.
func (n *Names) MoveName(id uint8) string {
	if id == 0 || int(id) >= len(n.Moves) {
		return ""
	}
	return n.Moves[id]
}

// TypeName returns the display name of type id, or "???" when unknown.
func (n *Names) TypeName(id uint8) string {
	if int(id) >= len(n.Types) {
		return "???"
	}
	return n.Types[id]
}

// MoveID resolves a move name or identifier to its engine id.
func (n *Names) MoveID(name string) (uint8, bool) {
	id, ok := n.moveIDs[ID(name)]
	return id, ok
}

// SpeciesID resolves a species name or identifier to its engine id.
func (n *Names) SpeciesID(name string) (uint8, bool) {
	id, ok := n.speciesIDs[ID(name)]
	return id, ok
}

func newNames(species, moves, types []string) *Names {
	n := &Names{
		Species:    append([]string{""}, species...),
		Moves:      append([]string{""}, moves...),
		Types:      types,
		moveIDs:    make(map[string]uint8, len(moves)),
		speciesIDs: make(map[string]uint8, len(species)),
	}
	for i, m := range moves {
		n.moveIDs[ID(m)] = uint8(i + 1)
	}
	for i, s := range species {
		n.speciesIDs[ID(s)] = uint8(i + 1)
	}
	return n
}

var gen1Names = newNames(gen1Species, gen1Moves, gen1Types)

var gen1Types = []string{
	"Normal", "Fighting", "Flying", "Poison", "Ground", "Rock", "Bug", "Ghost",
	"Fire", "Water", "Grass", "Electric", "Psychic", "Ice", "Dragon",
}

var gen1Species = []string{
	"Bulbasaur", "Ivysaur", "Venusaur", "Charmander", "Charmeleon", "Charizard",
	"Squirtle", "Wartortle", "Blastoise", "Caterpie", "Metapod", "Butterfree",
	"Weedle", "Kakuna", "Beedrill", "Pidgey", "Pidgeotto", "Pidgeot", "Rattata",
	"Raticate", "Spearow", "Fearow", "Ekans", "Arbok", "Pikachu", "Raichu",
	"Sandshrew", "Sandslash", "Nidoran-F", "Nidorina", "Nidoqueen", "Nidoran-M",
	"Nidorino", "Nidoking", "Clefairy", "Clefable", "Vulpix", "Ninetales",
	"Jigglypuff", "Wigglytuff", "Zubat", "Golbat", "Oddish", "Gloom", "Vileplume",
	"Paras", "Parasect", "Venonat", "Venomoth", "Diglett", "Dugtrio", "Meowth",
	"Persian", "Psyduck", "Golduck", "Mankey", "Primeape", "Growlithe", "Arcanine",
	"Poliwag", "Poliwhirl", "Poliwrath", "Abra", "Kadabra", "Alakazam", "Machop",
	"Machoke", "Machamp", "Bellsprout", "Weepinbell", "Victreebel", "Tentacool",
	"Tentacruel", "Geodude", "Graveler", "Golem", "Ponyta", "Rapidash", "Slowpoke",
	"Slowbro", "Magnemite", "Magneton", "Farfetch’d", "Doduo", "Dodrio", "Seel",
	"Dewgong", "Grimer", "Muk", "Shellder", "Cloyster", "Gastly", "Haunter",
	"Gengar", "Onix", "Drowzee", "Hypno", "Krabby", "Kingler", "Voltorb",
	"Electrode", "Exeggcute", "Exeggutor", "Cubone", "Marowak", "Hitmonlee",
	"Hitmonchan", "Lickitung", "Koffing", "Weezing", "Rhyhorn", "Rhydon", "Chansey",
	"Tangela", "Kangaskhan", "Horsea", "Seadra", "Goldeen", "Seaking", "Staryu",
	"Starmie", "Mr. Mime", "Scyther", "Jynx", "Electabuzz", "Magmar", "Pinsir",
	"Tauros", "Magikarp", "Gyarados", "Lapras", "Ditto", "Eevee", "Vaporeon",
	"Jolteon", "Flareon", "Porygon", "Omanyte", "Omastar", "Kabuto", "Kabutops",
	"Aerodactyl", "Snorlax", "Articuno", "Zapdos", "Moltres", "Dratini",
	"Dragonair", "Dragonite", "Mewtwo", "Mew",
}

var gen1Moves = []string{
	"Pound", "Karate Chop", "Double Slap", "Comet Punch", "Mega Punch", "Pay Day",
	"Fire Punch", "Ice Punch", "Thunder Punch", "Scratch", "Vise Grip",
	"Guillotine", "Razor Wind", "Swords Dance", "Cut", "Gust", "Wing Attack",
	"Whirlwind", "Fly", "Bind", "Slam", "Vine Whip", "Stomp", "Double Kick",
	"Mega Kick", "Jump Kick", "Rolling Kick", "Sand Attack", "Headbutt",
	"Horn Attack", "Fury Attack", "Horn Drill", "Tackle", "Body Slam", "Wrap",
	"Take Down", "Thrash", "Double-Edge", "Tail Whip", "Poison Sting", "Twineedle",
	"Pin Missile", "Leer", "Bite", "Growl", "Roar", "Sing", "Supersonic",
	"Sonic Boom", "Disable", "Acid", "Ember", "Flamethrower", "Mist", "Water Gun",
	"Hydro Pump", "Surf", "Ice Beam", "Blizzard", "Psybeam", "Bubble Beam",
	"Aurora Beam", "Hyper Beam", "Peck", "Drill Peck", "Submission", "Low Kick",
	"Counter", "Seismic Toss", "Strength", "Absorb", "Mega Drain", "Leech Seed",
	"Growth", "Razor Leaf", "Solar Beam", "Poison Powder", "Stun Spore",
	"Sleep Powder", "Petal Dance", "String Shot", "Dragon Rage", "Fire Spin",
	"Thunder Shock", "Thunderbolt", "Thunder Wave", "Thunder", "Rock Throw",
	"Earthquake", "Fissure", "Dig", "Toxic", "Confusion", "Psychic", "Hypnosis",
	"Meditate", "Agility", "Quick Attack", "Rage", "Teleport", "Night Shade",
	"Mimic", "Screech", "Double Team", "Recover", "Harden", "Minimize",
	"Smokescreen", "Confuse Ray", "Withdraw", "Defense Curl", "Barrier",
	"Light Screen", "Haze", "Reflect", "Focus Energy", "Bide", "Metronome",
	"Mirror Move", "Self-Destruct", "Egg Bomb", "Lick", "Smog", "Sludge",
	"Bone Club", "Fire Blast", "Waterfall", "Clamp", "Swift", "Skull Bash",
	"Spike Cannon", "Constrict", "Amnesia", "Kinesis", "Soft-Boiled",
	"High Jump Kick", "Glare", "Dream Eater", "Poison Gas", "Barrage",
	"Leech Life", "Lovely Kiss", "Sky Attack", "Transform", "Bubble",
	"Dizzy Punch", "Spore", "Flash", "Psywave", "Splash", "Acid Armor",
	"Crabhammer", "Explosion", "Fury Swipes", "Bonemerang", "Rest", "Rock Slide",
	"Hyper Fang", "Sharpen", "Conversion", "Tri Attack", "Super Fang", "Slash",
	"Substitute", "Struggle",
}
