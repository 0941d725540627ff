// Package company holds the static company details printed on reports and
// invoices and used as the sender identity of report emails.
package company

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Info is the company profile. Every field is read from COMPANY_<KEY> and
// falls back to a fixed default.
type Info struct {
	Name          string `env:"COMPANY_NAME" envDefault:"Účetní kancelář s.r.o."`
	Address       string `env:"COMPANY_ADDRESS" envDefault:"Náměstí Míru 1"`
	City          string `env:"COMPANY_CITY" envDefault:"120 00 Praha 2"`
	Country       string `env:"COMPANY_COUNTRY" envDefault:"Česká republika"`
	ICO           string `env:"COMPANY_ICO" envDefault:"12345678"`
	DIC           string `env:"COMPANY_DIC" envDefault:"CZ12345678"`
	VATNumber     string `env:"COMPANY_VAT_NUMBER" envDefault:"CZ12345678"`
	BankAccount   string `env:"COMPANY_BANK_ACCOUNT" envDefault:"123456789/0100"`
	IBAN          string `env:"COMPANY_IBAN" envDefault:"CZ6501000000000123456789"`
	SWIFT         string `env:"COMPANY_SWIFT" envDefault:"KOMBCZPP"`
	Phone         string `env:"COMPANY_PHONE" envDefault:"+420 123 456 789"`
	Email         string `env:"COMPANY_EMAIL" envDefault:"info@example.cz"`
	Website       string `env:"COMPANY_WEBSITE" envDefault:"https://www.example.cz"`
	InvoiceLogo   string `env:"COMPANY_INVOICE_LOGO" envDefault:"static/img/logo.png"`
	InvoiceFooter string `env:"COMPANY_INVOICE_FOOTER" envDefault:"Společnost je zapsána v obchodním rejstříku."`
}

// Load reads dotenv files into the process environment and parses Info
// from it. With no files it reads ".env" when present. Named files must
// exist. Variables already set in the environment win over dotenv values.
func Load(files ...string) (Info, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return Info{}, fmt.Errorf("load dotenv: %w", err)
		}
	}
	return Parse()
}

// Parse reads Info from the current environment only.
func Parse() (Info, error) {
	var info Info
	if err := env.Parse(&info); err != nil {
		return Info{}, fmt.Errorf("parse company env: %w", err)
	}
	return info, nil
}

// Context returns the profile as template context entries keyed
// "company_<key>".
func (i Info) Context() map[string]string {
	return map[string]string{
		"company_name":           i.Name,
		"company_address":        i.Address,
		"company_city":           i.City,
		"company_country":        i.Country,
		"company_ico":            i.ICO,
		"company_dic":            i.DIC,
		"company_vat_number":     i.VATNumber,
		"company_bank_account":   i.BankAccount,
		"company_iban":           i.IBAN,
		"company_swift":          i.SWIFT,
		"company_phone":          i.Phone,
		"company_email":          i.Email,
		"company_website":        i.Website,
		"company_invoice_logo":   i.InvoiceLogo,
		"company_invoice_footer": i.InvoiceFooter,
	}
}
