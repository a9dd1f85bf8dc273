// Package memory backs service tests with map-based implementations of the
// repository interfaces. Error contracts mirror the Postgres repositories:
// missing rows surface sql.ErrNoRows, uniqueness failures surface the same
// sentinels or a unique-violation pq error.
package memory

import (
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Store implements every repository interface over in-process maps.
type Store struct {
	mu sync.Mutex

	users       map[string]models.User
	orgs        map[string]models.Organization
	memberships map[string]models.Membership
	invites     map[string]models.Invite
	otps        map[string]models.OTP
	namespaces  map[string]models.Namespace
	shortURLs   map[string]models.ShortURL
}

func NewStore() *Store {
	return &Store{
		users:       make(map[string]models.User),
		orgs:        make(map[string]models.Organization),
		memberships: make(map[string]models.Membership),
		invites:     make(map[string]models.Invite),
		otps:        make(map[string]models.OTP),
		namespaces:  make(map[string]models.Namespace),
		shortURLs:   make(map[string]models.ShortURL),
	}
}

var uniqueViolation = &pq.Error{Code: "23505"}

// --- UserRepository ---

func (s *Store) CreateUser(email, password, firstName, lastName string, isActive bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(strings.ToLower(email))
	for _, u := range s.users {
		if u.Email == email {
			return models.User{}, uniqueViolation
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: string(hash),
		IsActive:     isActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) AuthenticateUser(email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(email)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, repository.ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return models.User{}, repository.ErrInvalidCredentials
	}
	if !user.IsActive {
		return models.User{}, repository.ErrUserInactive
	}
	return user, nil
}

func (s *Store) GetUserByEmail(email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(strings.ToLower(email))
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (s *Store) GetUserByID(userID string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (s *Store) ActivateUser(userID string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	u.IsActive = true
	u.UpdatedAt = time.Now()
	s.users[userID] = u
	return u, nil
}

// --- OrganizationRepository ---

func (s *Store) CreateOrganization(name, ownerID string) (models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org := models.Organization{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.orgs[org.ID] = org
	return org, nil
}

func (s *Store) GetOrganizationByID(id string) (models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.orgs[id]
	if !ok {
		return models.Organization{}, sql.ErrNoRows
	}
	return org, nil
}

func (s *Store) ListOrganizationsForUser(userID string) ([]models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var orgs []models.Organization
	for _, org := range s.orgs {
		if org.OwnerID == userID {
			orgs = append(orgs, org)
			seen[org.ID] = true
		}
	}
	for _, m := range s.memberships {
		if m.UserID == userID && !seen[m.OrganizationID] {
			orgs = append(orgs, s.orgs[m.OrganizationID])
			seen[m.OrganizationID] = true
		}
	}
	return orgs, nil
}

// --- MembershipRepository ---

func membershipKey(organizationID, userID string) string {
	return organizationID + "/" + userID
}

func (s *Store) CreateMembership(organizationID, userID string, role models.Role) (models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(organizationID, userID)
	if _, exists := s.memberships[key]; exists {
		return models.Membership{}, uniqueViolation
	}
	m := models.Membership{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	s.memberships[key] = m
	return m, nil
}

func (s *Store) GetMembership(organizationID, userID string) (models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[membershipKey(organizationID, userID)]
	if !ok {
		return models.Membership{}, sql.ErrNoRows
	}
	return m, nil
}

func (s *Store) GetMembershipByEmail(organizationID, email string) (models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = strings.TrimSpace(strings.ToLower(email))
	for _, m := range s.memberships {
		if m.OrganizationID != organizationID {
			continue
		}
		if u, ok := s.users[m.UserID]; ok && u.Email == email {
			return m, nil
		}
	}
	return models.Membership{}, sql.ErrNoRows
}

func (s *Store) ListMembers(organizationID string) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []models.Membership
	for _, m := range s.memberships {
		if m.OrganizationID == organizationID {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].CreatedAt.Before(members[j].CreatedAt) })
	return members, nil
}

func (s *Store) UpdateRole(organizationID, userID string, role models.Role) (models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(organizationID, userID)
	m, ok := s.memberships[key]
	if !ok {
		return models.Membership{}, sql.ErrNoRows
	}
	m.Role = role
	m.UpdatedAt = time.Now()
	s.memberships[key] = m
	return m, nil
}

func (s *Store) DeleteMembership(organizationID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(organizationID, userID)
	if _, ok := s.memberships[key]; !ok {
		return sql.ErrNoRows
	}
	delete(s.memberships, key)
	return nil
}

// --- InviteRepository ---

func (s *Store) CreateInvite(invite models.Invite) (models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.invites {
		if existing.OrganizationID == invite.OrganizationID && existing.Email == invite.Email && !existing.Used {
			return models.Invite{}, repository.ErrDuplicatePendingInvite
		}
	}
	invite.ID = uuid.NewString()
	invite.CreatedAt = time.Now()
	invite.UpdatedAt = time.Now()
	s.invites[invite.ID] = invite
	return invite, nil
}

func (s *Store) GetInviteByTokenHash(tokenHash string) (models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, invite := range s.invites {
		if invite.TokenHash == tokenHash {
			return invite, nil
		}
	}
	return models.Invite{}, sql.ErrNoRows
}

func (s *Store) GetInviteByID(inviteID string) (models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteID]
	if !ok {
		return models.Invite{}, sql.ErrNoRows
	}
	return invite, nil
}

func (s *Store) MarkInviteUsed(inviteID string, accepted bool) (models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteID]
	if !ok || invite.Used {
		return models.Invite{}, sql.ErrNoRows
	}
	invite.Used = true
	invite.Accepted = accepted
	invite.UpdatedAt = time.Now()
	s.invites[inviteID] = invite
	return invite, nil
}

func (s *Store) AcceptInvite(inviteID, userID string) (models.Invite, models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteID]
	if !ok || invite.Used {
		return models.Invite{}, models.Membership{}, sql.ErrNoRows
	}
	key := membershipKey(invite.OrganizationID, userID)
	if _, exists := s.memberships[key]; exists {
		// The invite stays pending, matching the rolled-back transaction.
		return models.Invite{}, models.Membership{}, uniqueViolation
	}

	invite.Used = true
	invite.Accepted = true
	invite.UpdatedAt = time.Now()
	s.invites[inviteID] = invite

	m := models.Membership{
		ID:             uuid.NewString(),
		OrganizationID: invite.OrganizationID,
		UserID:         userID,
		Role:           invite.Role,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	s.memberships[key] = m
	return invite, m, nil
}

func (s *Store) ListInvitesByOrganization(organizationID string) ([]models.Invite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var invites []models.Invite
	for _, invite := range s.invites {
		if invite.OrganizationID == organizationID {
			invites = append(invites, invite)
		}
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].CreatedAt.After(invites[j].CreatedAt) })
	return invites, nil
}

func (s *Store) DeleteInvite(inviteID, organizationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteID]
	if !ok || invite.OrganizationID != organizationID || invite.Used {
		return sql.ErrNoRows
	}
	delete(s.invites, inviteID)
	return nil
}

// --- OTPRepository ---

func (s *Store) SupersedeAndCreate(userID, code string, expiresAt time.Time, maxAttempts int) (models.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, otp := range s.otps {
		if otp.UserID == userID && !otp.IsUsed {
			otp.IsUsed = true
			s.otps[id] = otp
		}
	}
	otp := models.OTP{
		ID:          uuid.NewString(),
		UserID:      userID,
		Code:        code,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
		MaxAttempts: maxAttempts,
	}
	s.otps[otp.ID] = otp
	return otp, nil
}

func (s *Store) GetLatestUnusedByUser(userID string) (models.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest models.OTP
	found := false
	for _, otp := range s.otps {
		if otp.UserID == userID && !otp.IsUsed {
			if !found || otp.CreatedAt.After(latest.CreatedAt) {
				latest = otp
				found = true
			}
		}
	}
	if !found {
		return models.OTP{}, sql.ErrNoRows
	}
	return latest, nil
}

func (s *Store) IncrementAttempts(otpID string) (models.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	otp, ok := s.otps[otpID]
	if !ok {
		return models.OTP{}, sql.ErrNoRows
	}
	otp.Attempts++
	s.otps[otpID] = otp
	return otp, nil
}

func (s *Store) MarkUsed(otpID string) (models.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	otp, ok := s.otps[otpID]
	if !ok || otp.IsUsed {
		return models.OTP{}, sql.ErrNoRows
	}
	otp.IsUsed = true
	s.otps[otpID] = otp
	return otp, nil
}

// ExpireOTP backdates the active code's expiry, standing in for the passage
// of time in tests.
func (s *Store) ExpireOTP(otpID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if otp, ok := s.otps[otpID]; ok {
		otp.ExpiresAt = time.Now().Add(-time.Minute)
		s.otps[otpID] = otp
	}
}

// ActiveCode returns the plaintext of the user's active OTP.
func (s *Store) ActiveCode(userID string) string {
	otp, err := s.GetLatestUnusedByUser(userID)
	if err != nil {
		return ""
	}
	return otp.Code
}

// --- NamespaceRepository ---

func (s *Store) CreateNamespace(organizationID, name, description string) (models.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ns := range s.namespaces {
		if ns.Name == name {
			return models.Namespace{}, repository.ErrDuplicateNamespace
		}
	}
	ns := models.Namespace{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Name:           name,
		Description:    description,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	s.namespaces[ns.ID] = ns
	return ns, nil
}

func (s *Store) GetNamespaceByID(id string) (models.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[id]
	if !ok {
		return models.Namespace{}, sql.ErrNoRows
	}
	return ns, nil
}

func (s *Store) GetNamespaceByName(name string) (models.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ns := range s.namespaces {
		if ns.Name == name {
			return ns, nil
		}
	}
	return models.Namespace{}, sql.ErrNoRows
}

func (s *Store) ListNamespacesByOrganization(organizationID string) ([]models.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var namespaces []models.Namespace
	for _, ns := range s.namespaces {
		if ns.OrganizationID == organizationID {
			namespaces = append(namespaces, ns)
		}
	}
	sort.Slice(namespaces, func(i, j int) bool { return namespaces[i].CreatedAt.Before(namespaces[j].CreatedAt) })
	return namespaces, nil
}

func (s *Store) DeleteNamespace(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.namespaces[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.namespaces, id)
	for linkID, link := range s.shortURLs {
		if link.NamespaceID == id {
			delete(s.shortURLs, linkID)
		}
	}
	return nil
}

// --- ShortURLRepository ---

func (s *Store) CreateShortURL(link models.ShortURL) (models.ShortURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shortURLs {
		if existing.NamespaceID == link.NamespaceID && existing.ShortCode == link.ShortCode {
			return models.ShortURL{}, repository.ErrDuplicateShortCode
		}
	}
	link.ID = uuid.NewString()
	link.CreatedAt = time.Now()
	link.UpdatedAt = time.Now()
	s.shortURLs[link.ID] = link
	return link, nil
}

func (s *Store) GetShortURLByID(id string) (models.ShortURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.shortURLs[id]
	if !ok {
		return models.ShortURL{}, sql.ErrNoRows
	}
	return link, nil
}

func (s *Store) GetShortURLByCode(namespaceName, shortCode string) (models.ShortURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nsID string
	for _, ns := range s.namespaces {
		if ns.Name == namespaceName {
			nsID = ns.ID
			break
		}
	}
	if nsID == "" {
		return models.ShortURL{}, sql.ErrNoRows
	}
	for _, link := range s.shortURLs {
		if link.NamespaceID == nsID && link.ShortCode == shortCode {
			return link, nil
		}
	}
	return models.ShortURL{}, sql.ErrNoRows
}

func (s *Store) ListShortURLsByNamespace(namespaceID string) ([]models.ShortURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var links []models.ShortURL
	for _, link := range s.shortURLs {
		if link.NamespaceID == namespaceID {
			links = append(links, link)
		}
	}
	sort.Slice(links, func(i, j int) bool { return links[i].CreatedAt.Before(links[j].CreatedAt) })
	return links, nil
}

func (s *Store) UpdateShortURL(link models.ShortURL) (models.ShortURL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.shortURLs[link.ID]
	if !ok {
		return models.ShortURL{}, sql.ErrNoRows
	}
	existing.OriginalURL = link.OriginalURL
	existing.Title = link.Title
	existing.Description = link.Description
	existing.IsActive = link.IsActive
	existing.UpdatedAt = time.Now()
	s.shortURLs[link.ID] = existing
	return existing, nil
}

func (s *Store) DeleteShortURL(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shortURLs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.shortURLs, id)
	return nil
}

func (s *Store) IncrementClickCount(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.shortURLs[id]
	if !ok {
		return sql.ErrNoRows
	}
	link.ClickCount++
	s.shortURLs[id] = link
	return nil
}
