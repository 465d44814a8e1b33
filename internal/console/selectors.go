// Package console holds every selector of the seller console the tool relies
// on. When the console's markup changes, this is the file to update.
package console

import (
	"fmt"

	"wbreports/internal/browser"
)

var (
	css   = browser.CSS
	byID  = browser.ID
	xpath = browser.XPath
)

// Reports page.
var (
	CabinetToggle = browser.NewLocator("cabinet selector",
		css("button[class*='Suppliers-select']"),
		css("[data-testid='supplier-select-button']"),
		xpath("//button[contains(@class, 'supplier')]"),
	)

	CabinetSearch = browser.NewLocator("cabinet search",
		byID("suppliers-search"),
		css("input[placeholder*='Поиск']"),
	)

	DateRangeButton = browser.NewLocator("date range control",
		css("button.Date-input__icon-button__WnbzIWQzsq"),
		css("button[class*='Date-input__icon-button']"),
	)

	StartDate = browser.NewLocator("start date",
		byID("startDate"),
		css("input[name='startDate']"),
	)

	EndDate = browser.NewLocator("end date",
		byID("endDate"),
		css("input[name='endDate']"),
	)

	SaveDates = browser.NewLocator("date range submit",
		css("button.Button-link--main__bEAy5pip1O[type='submit']"),
		xpath("//button[@type='submit'][.//span[contains(text(), 'Сохранить')]]"),
		css("form button[type='submit']"),
	)

	ExportButton = browser.NewLocator("export button",
		xpath("//button[.//span[contains(text(), 'Выгрузить в Excel')]]"),
		css("button.Button-link__1abzU3JUeb.Button-link--button-big__Bi4mHiOkNS"),
	)

	StaleReportDelete = browser.NewLocator("generated report delete",
		xpath("//div[contains(@class, 'Report-list')]//button[contains(@class, 'delete')]"),
		css("button[class*='Delete-button']"),
	)

	ConfirmDelete = browser.NewLocator("delete confirmation",
		xpath("//div[contains(@class, 'Modal')]//button[.//span[contains(text(), 'Удалить')]]"),
	)

	PageHeading = browser.NewLocator("reports heading",
		xpath("//h1[contains(text(), 'Продажи')]"),
		xpath("//*[contains(@class, 'Page-title')][contains(text(), 'Продажи')]"),
	)
)

// CabinetOption returns the ordered ways of selecting the search result for
// the cabinet id: its label, the label of its checkbox, then the checkbox.
func CabinetOption(id string) browser.Locator {
	return browser.NewLocator(fmt.Sprintf("cabinet option %s", id),
		xpath(fmt.Sprintf("//label[contains(., '%s')]", id)),
		xpath(fmt.Sprintf("//input[@type='checkbox'][contains(@value, '%s')]/ancestor::label[1]", id)),
		xpath(fmt.Sprintf("//input[@type='checkbox'][contains(@value, '%s')]", id)),
	)
}

// Landmarks identify a loaded reports page, probed in this order.
var Landmarks = []browser.Locator{CabinetSearch, DateRangeButton, PageHeading}

// Sign-in pages.
var (
	PhoneInput = browser.NewLocator("phone input",
		css("input[data-testid='phone-input']"),
		css("input[type='tel']"),
		css("input[name='phone']"),
	)

	SubmitPhone = browser.NewLocator("phone submit",
		css("button[data-testid='submit-phone-button']"),
		xpath("//button[contains(., 'Получить код')]"),
		css("form button[type='submit']"),
	)

	FirstCodeInput = browser.NewLocator("first code input",
		css("input[data-testid='sms-code-input']"),
		css("input[autocomplete='one-time-code']"),
		css("input[inputmode='numeric']"),
	)

	SubmitFirstCode = browser.NewLocator("first code submit",
		css("button[data-testid='sms-code-submit']"),
		xpath("//button[contains(., 'Войти') or contains(., 'Продолжить')]"),
	)

	SecondCodeInput = browser.NewLocator("second code input",
		css("input[data-testid='email-code-input']"),
		css("input[name='code']"),
	)

	SubmitSecondCode = browser.NewLocator("second code submit",
		css("button[data-testid='email-code-submit']"),
		xpath("//button[contains(., 'Подтвердить')]"),
	)
)
