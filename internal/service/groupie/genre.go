package groupie

import "github.com/kapu/spotmyartist/internal/domain"

var genreByName = map[string]string{
	"Queen":                       "Rock",
	"SOJA":                        "Reggae",
	"Pink Floyd":                  "Rock progressif",
	"Scorpions":                   "Heavy Metal",
	"XXXTentacion":                "Hip-Hop",
	"Mac Miller":                  "Hip-Hop/Rap",
	"Joyner Lucas":                "Hip-Hop/Rap",
	"Kendrick Lamar":              "Hip-Hop/Rap",
	"AC/DC":                       "Hard Rock",
	"Pearl Jam":                   "Grunge",
	"Katy Perry":                  "Pop",
	"Rihanna":                     "Pop/R&B",
	"Genesis":                     "Rock progressif",
	"Phil Collins":                "Rock/Pop",
	"Led Zeppelin":                "Hard Rock",
	"The Jimi Hendrix Experience": "Rock",
	"Bee Gees":                    "Disco",
	"Deep Purple":                 "Hard Rock",
	"Aerosmith":                   "Hard Rock",
	"Dire Straits":                "Rock",
	"Mamonas Assassinas":          "Rock/Samba",
	"Thirty Seconds to Mars":      "Rock alternatif",
	"Imagine Dragons":             "Pop Rock",
	"Juice Wrld":                  "Hip-Hop",
	"Logic":                       "Hip-Hop/Rap",
	"Alec Benjamin":               "Pop",
	"Bobby McFerrins":             "Jazz/Pop",
	"R3HAB":                       "EDM",
	"Post Malone":                 "Hip-Hop/Pop",
	"Travis Scott":                "Hip-Hop",
	"J. Cole":                     "Hip-Hop/Rap",
	"Nickelback":                  "Rock alternatif",
	"Mobb Deep":                   "Hip-Hop",
	"Guns N' Roses":               "Hard Rock",
	"NWA":                         "Hip-Hop",
	"U2":                          "Rock",
	"Arctic Monkeys":              "Rock indépendant",
	"Fall Out Boy":                "Pop Punk",
	"Gorillaz":                    "Alternative Hip-Hop",
	"Eagles":                      "Rock",
	"Linkin Park":                 "Rock alternatif",
	"Red Hot Chili Peppers":       "Funk Rock",
	"Eminem":                      "Hip-Hop",
	"Green Day":                   "Punk Rock",
	"Metallica":                   "Heavy Metal",
	"Coldplay":                    "Pop Rock",
	"Maroon 5":                    "Pop",
	"Twenty One Pilots":           "Alternative",
	"The Rolling Stones":          "Rock",
	"Muse":                        "Rock alternatif",
	"Foo Fighters":                "Rock alternatif",
	"The Chainsmokers":            "EDM/Pop",
}

// GenreFor returns the curated genre for a known artist name, otherwise a
// default derived from the creation year.
func GenreFor(name string, creationYear int) string {
	if genre, ok := genreByName[name]; ok {
		return genre
	}
	switch {
	case creationYear < 1980:
		return "Classic Rock"
	case creationYear < 2000:
		return "Rock"
	default:
		return "Pop/Rock"
	}
}

func assignGenres(artists []domain.Artist) {
	for i := range artists {
		artists[i].Genre = GenreFor(artists[i].Name, artists[i].CreationDate)
	}
}
