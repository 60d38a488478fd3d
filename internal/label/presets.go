package label

import "fmt"

// Preset names.
const (
	PresetWeb       = "web"
	PresetScholarly = "scholarly"
)

// PresetVersion tags the built-in tables.
const PresetVersion = "builtin-1"

var webRules = []Rule{
	{Label: "zakat", Keywords: []string{"zakat", "zalkat", "zakat fitrah", "zakat mal", "zakat profesi"}},
	{Label: "sedekah", Keywords: []string{"sedekah", "sedakah", "infaq", "sadaqah", "wakaf"}},
	{Label: "tabungan", Keywords: []string{"tabungan", "menabung", "simpan", "rekening tabungan"}},
	{Label: "investasi", Keywords: []string{"investasi", "saham", "reksa", "obligasi", "dividen"}},
	{Label: "transport", Keywords: []string{"transpor", "transport", "transportasi", "ojek", "kendaraan", "taksi"}},
	{Label: "makanan", Keywords: []string{"makan", "makanan", "restoran", "warung", "makan siang", "sarapan"}},
	{Label: "belanja", Keywords: []string{"belanja", "belian", "pembelian", "toko", "supermarket", "pasar"}},
	{Label: "utilitas", Keywords: []string{"listrik", "air", "tagihan", "internet", "telepon", "pln", "pdam"}},
	{Label: "gaji", Keywords: []string{"gaji", "upah", "salary", "pembayaran gaji"}},
	{Label: "pinjaman", Keywords: []string{"pinjaman", "kredit", "hutang", "pinjam", "angsuran", "cicilan"}},
	{Label: "donasi", Keywords: []string{"donasi", "sumbangan", "amal", "donate"}},
}

var scholarlyRules = []Rule{
	{Label: "zakat", Keywords: []string{"zakat", "zakat fitrah", "zakat mal", "zakat profesi"}},
	{Label: "sedekah", Keywords: []string{"sedekah", "sedakah", "infaq", "sadaqah", "wakaf"}},
	{Label: "tabungan", Keywords: []string{"tabungan", "menabung", "rekening tabungan"}},
	{Label: "investasi", Keywords: []string{"investasi", "saham", "reksa", "obligasi"}},
	{Label: "makanan", Keywords: []string{"makan", "restoran", "warung", "makan siang"}},
	{Label: "belanja", Keywords: []string{"belanja", "pembelian", "supermarket", "pasar"}},
	{Label: "utilitas", Keywords: []string{"listrik", "air", "internet", "telepon", "pln", "pdam"}},
	{Label: "pinjaman", Keywords: []string{"pinjaman", "kredit", "hutang", "angsuran", "cicilan"}},
	{Label: "donasi", Keywords: []string{"donasi", "sumbangan", "amal"}},
}

// Preset returns one of the built-in tables.
func Preset(name string) (*Table, error) {
	switch name {
	case PresetWeb:
		return NewTable(PresetVersion, webRules)
	case PresetScholarly:
		return NewTable(PresetVersion, scholarlyRules)
	default:
		return nil, fmt.Errorf("unknown label preset %q", name)
	}
}

// Resolve loads the table at path when set, otherwise the named preset.
func Resolve(path, preset string) (*Table, error) {
	if path != "" {
		return LoadTable(path)
	}
	return Preset(preset)
}
